package domain

import "github.com/comptoir-labs/comptoir/internal/authorization"

// ModuleDef is one entry of the fixed module catalog. The catalog is code,
// not data: modules and their pages ship with the binary.
type ModuleDef struct {
	ID    string
	Name  string
	Pages []string
}

var Catalog = []ModuleDef{
	{authorization.ObjectStore, "Storefront", []string{"appearance", "pages", "navigation", "domains"}},
	{authorization.ObjectCatalog, "Catalog", []string{"products", "categories", "attributes", "imports"}},
	{authorization.ObjectOrders, "Orders", []string{"orders", "returns", "shipments"}},
	{authorization.ObjectInvoicing, "Invoicing", []string{"invoices", "credit-notes", "payment-terms"}},
	{authorization.ObjectStock, "Stock", []string{"inventory", "warehouses", "movements"}},
	{authorization.ObjectAnalytics, "Analytics", []string{"dashboard", "reports", "exports"}},
	{authorization.ObjectMarketing, "Marketing", []string{"campaigns", "discounts", "newsletters"}},
	{authorization.ObjectSupport, "Support", []string{"tickets", "faq"}},
	{authorization.ObjectSettings, "Settings", []string{"general", "team", "billing", "integrations"}},
	{authorization.ObjectPOS, "Point of Sale", []string{"registers", "sessions"}},
}

var catalogByID = func() map[string]ModuleDef {
	m := make(map[string]ModuleDef, len(Catalog))
	for _, def := range Catalog {
		m[def.ID] = def
	}
	return m
}()

// KnownModule reports whether the id names a catalog module.
func KnownModule(id string) bool {
	_, ok := catalogByID[id]
	return ok
}

// ModuleByID looks up a catalog entry.
func ModuleByID(id string) (ModuleDef, bool) {
	def, ok := catalogByID[id]
	return def, ok
}
