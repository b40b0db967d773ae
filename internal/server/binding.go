package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

var errEmptyBody = errors.New("empty request body")

// rpcEnvelope is the JSON-RPC style call convention some clients still
// speak: the real payload sits under params.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// bindRequest unwraps either convention into dst: a JSON-RPC envelope or a
// plain JSON body. Callers treat an error as a 400.
func bindRequest(c *gin.Context, dst any) error {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errEmptyBody
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil &&
		(envelope.JSONRPC != "" || envelope.Method != "") && len(envelope.Params) > 0 {
		return json.Unmarshal(envelope.Params, dst)
	}
	return json.Unmarshal(raw, dst)
}
