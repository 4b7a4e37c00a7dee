// Default catalog for the consulting sales-pipeline warehouse, used when no
// schema has been loaded. The three MQT tables mirror the demo star schema.
package registry

// DefaultCatalog returns the built-in catalog describing the three primary
// pipeline tables. The orchestrator substitutes it when the configured
// registry is empty, which is surfaced as a warning in the first agent's log.
func DefaultCatalog() *Registry {
	r := New()

	r.AddTable("PROD_MQT_CONSULTING_PIPELINE", []string{
		"MARKET", "WON_AMT", "SALES_STAGE", "OPPORTUNITY_VALUE", "YEAR", "QUARTER",
		"PPV_AMT", "GEOGRAPHY", "CLIENT_NAME", "SNAPSHOT_LEVEL", "WEEK",
		"OPPTY_ID", "DEAL_ID", "IBM_GEN_AI_IND", "PARTNER_GEN_AI_IND",
		"CALL_AMT", "UPSIDE_AMT", "QUALIFY_PLUS_AMT", "PROPOSE_PLUS_AMT",
		"NEGOTIATE_PLUS_AMT", "OPEN_PIPELINE_AMT", "UT15_NAME", "UT17_NAME",
		"UT20_NAME", "UT30_NAME", "SECTOR", "INDUSTRY", "RELATIVE_QUARTER_MNEUMONIC",
	})

	r.AddTable("PROD_MQT_CONSULTING_BUDGET", []string{
		"REVENUE_BUDGET_AMT", "SIGNINGS_BUDGET_AMT", "GROSS_PROFIT_BUDGET_AMT",
		"YEAR", "QUARTER", "MONTH", "GEOGRAPHY", "MARKET", "SECTOR", "INDUSTRY",
		"CLIENT_NAME", "UT15_NAME", "UT17_NAME", "UT20_NAME", "UT30_NAME",
	})

	r.AddTable("PROD_MQT_CONSULTING_REVENUE_ACTUALS", []string{
		"REVENUE_AMT", "GROSS_PROFIT_AMT", "REVENUE_AMT_PY", "GROSS_PROFIT_AMT_PY",
		"YEAR", "QUARTER", "MONTH", "GEOGRAPHY", "MARKET", "SECTOR", "INDUSTRY",
	})

	r.SetSchemaText(defaultSchemaText)
	r.SetDictionaryText(defaultDictionaryText)
	return r
}

const defaultSchemaText = `Consulting sales pipeline warehouse (MQT snapshot tables):
- PROD_MQT_CONSULTING_PIPELINE: weekly opportunity snapshots with sales stage, deal value, and AI-forecast amounts
- PROD_MQT_CONSULTING_BUDGET: revenue, signings, and gross-profit budgets by period and geography
- PROD_MQT_CONSULTING_REVENUE_ACTUALS: realized revenue and gross profit with prior-year comparatives`

const defaultDictionaryText = `KEY COLUMNS:
- PPV_AMT: AI-based revenue forecast amount (use for forecasting questions)
- OPPORTUNITY_VALUE: deal value (use for pipeline value questions)
- SALES_STAGE: one of Qualify, Propose, Negotiate, Won, Lost; exclude Won/Lost for active pipeline
- SNAPSHOT_LEVEL: snapshot granularity, 'W' = weekly
- GEOGRAPHY / MARKET / SECTOR / INDUSTRY: standard sales hierarchy dimensions
- IBM_GEN_AI_IND / PARTNER_GEN_AI_IND: 1 when the opportunity involves generative AI
- YEAR / QUARTER / MONTH / WEEK: fiscal period columns`
