package pipeline

import "strings"

// columnSynonyms maps standard sales-pipeline column names to the variants
// seen across warehouse snapshots. The column validator consults it in both
// directions; every pair in the regenerator's fallback table below is taken
// from it, so a fallback rewrite can never produce a name the validator would
// reject.
var columnSynonyms = map[string][]string{
	"OPPORTUNITY_ID":    {"OPPTY_ID", "OPP_ID", "OPPORTUNITY_NUM", "DEAL_ID"},
	"OPPORTUNITY_VALUE": {"OPPTY_VALUE", "DEAL_VALUE", "OPPORTUNITY_AMT", "OPP_VALUE", "PPV_AMT"},
	"CLIENT_NAME":       {"CUSTOMER_NAME", "ACCOUNT_NAME", "CLIENT_ID", "CUSTOMER_ID"},
	"SALES_STAGE":       {"STAGE", "OPPORTUNITY_STAGE", "DEAL_STAGE"},
	"WON_AMT":           {"WON_AMOUNT", "WON_VALUE", "CLOSED_WON_AMT"},
	"REVENUE_AMT":       {"REVENUE", "REVENUE_AMOUNT", "ACTUAL_REVENUE"},
	"PIPELINE_AMT":      {"PIPELINE_VALUE", "PIPELINE_AMOUNT"},
	"BUDGET_AMT":        {"BUDGET", "BUDGET_AMOUNT", "TARGET_REVENUE"},
}

// fallbackSubstitutions is the regenerator's last-resort rewrite table,
// applied when no LLM is available. Every pair appears in columnSynonyms.
var fallbackSubstitutions = map[string]string{
	"OPPORTUNITY_ID":    "OPPTY_ID",
	"OPPORTUNITY_VALUE": "PPV_AMT",
	"CLIENT_NAME":       "CUSTOMER_NAME",
	"REVENUE_AMT":       "ACTUAL_REVENUE",
	"PIPELINE_AMT":      "PIPELINE_VALUE",
}

// findSimilarColumn resolves a missing column against a table's column list:
// case-insensitive exact match first, then the synonym dictionary in both
// directions, then substring containment for names longer than three
// characters. Returns the canonical available column, or "".
func findSimilarColumn(missing string, available []string) string {
	missingUpper := strings.ToUpper(missing)

	for _, col := range available {
		if strings.ToUpper(col) == missingUpper {
			return col
		}
	}

	if variants, ok := columnSynonyms[missingUpper]; ok {
		for _, variant := range variants {
			for _, col := range available {
				if strings.ToUpper(col) == variant {
					return col
				}
			}
		}
	}

	for standard, variants := range columnSynonyms {
		for _, variant := range variants {
			if variant != missingUpper {
				continue
			}
			for _, col := range available {
				if strings.ToUpper(col) == standard {
					return col
				}
			}
		}
	}

	if len(missingUpper) > 3 {
		for _, col := range available {
			colUpper := strings.ToUpper(col)
			if len(colUpper) > 3 && (strings.Contains(colUpper, missingUpper) || strings.Contains(missingUpper, colUpper)) {
				return col
			}
		}
	}

	return ""
}
