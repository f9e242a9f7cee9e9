package router

import "strings"

// Keywords are matched as substrings of the lower-cased question.
var (
	structuredKeywords = []string{
		"venta", "ventas", "facturación", "beneficio", "coste", "región", "producto",
		"tendencia", "mes", "trimestral", "tickets", "prioridad", "resolución", "sla", "ttr",
		// English
		"sales", "revenue", "profit", "cost", "region", "product",
		"trend", "month", "quarterly", "priority", "resolution",
	}
	documentKeywords = []string{
		"documento", "pdf", "cita", "citas", "fuente", "según", "sección", "manual", "política", "normativa",
		// English
		"document", "citation", "source", "according to", "section", "policy", "regulation",
	}
)

// rule maps any of its keywords to an intent.
type rule struct {
	intent   Intent
	keywords []string
}

// structuredRules are evaluated in order; the first match wins.
var structuredRules = []rule{
	{IntentSalesByRegion, []string{"región", "region"}},
	{IntentSalesByProduct, []string{"producto", "product"}},
	{IntentSupportKPIs, []string{"tickets", "resolución", "resolution"}},
	{IntentSalesTrend, []string{"tendencia", "mes", "trend", "month"}},
}

// Classify routes a question. It is pure and never fails.
func Classify(query string) Route {
	q := strings.ToLower(query)
	structured := containsAny(q, structuredKeywords)
	document := containsAny(q, documentKeywords)

	switch {
	case structured && document:
		return Route{Action: ActionBoth, Intent: IntentSalesTotal}
	case structured:
		for _, r := range structuredRules {
			if containsAny(q, r.keywords) {
				return Route{Action: ActionStructured, Intent: r.intent}
			}
		}
		return Route{Action: ActionStructured, Intent: IntentSalesTotal}
	default:
		return Route{Action: ActionDocument}
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
