package domain

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTOTPNotFound  = errors.New("totp config not found")
)
