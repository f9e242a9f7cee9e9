// Package router decides whether a question needs structured analytics,
// document retrieval, or both.
package router

// Action names the pipelines a question is sent to.
type Action string

const (
	ActionStructured Action = "structured"
	ActionDocument   Action = "document"
	ActionBoth       Action = "both"
)

// Intent identifies one of the fixed analytics queries.
type Intent string

const (
	IntentNone           Intent = ""
	IntentSalesTotal     Intent = "sales_total"
	IntentSalesByRegion  Intent = "sales_by_region"
	IntentSalesByProduct Intent = "sales_by_product"
	IntentSalesTrend     Intent = "sales_trend_m"
	IntentSupportKPIs    Intent = "support_kpis"
)

// Route is the routing decision for one question.
// Intent is empty when Action is ActionDocument.
type Route struct {
	Action Action `json:"action"`
	Intent Intent `json:"intent,omitempty"`
}

// NeedsStructured reports whether the analytics branch must run.
func (r Route) NeedsStructured() bool {
	return r.Action == ActionStructured || r.Action == ActionBoth
}

// NeedsDocument reports whether the document branch must run.
func (r Route) NeedsDocument() bool {
	return r.Action == ActionDocument || r.Action == ActionBoth
}
