package llm

import "fmt"

// buildPrompt assembles the generation prompt. The instructions pin the
// output to DB2 syntax; the pipeline's dialect translator takes it from
// there when the target warehouse is SQLite.
func buildPrompt(question, schemaText, dictionaryText string) string {
	return fmt.Sprintf(`You are an expert SQL analyst for a consulting sales-pipeline warehouse. Generate a precise SQL query for the user's question.

SCHEMA INFORMATION:
%s

DATA DICTIONARY KNOWLEDGE BASE:
%s

USER QUESTION: %s

SQL SYNTAX REQUIREMENTS:
1. Generate pure IBM DB2 SQL syntax only
2. Use DB2 date functions: CURRENT DATE, CURRENT TIMESTAMP, YEAR(date), MONTH(date), QUARTER(date)
3. For current date filtering use: YEAR(column_name) = YEAR(CURRENT DATE)
4. Use DB2 string functions: SUBSTR(), LENGTH(), UPPER()
5. Use DECIMAL(value, precision, scale) for financial calculations
6. Use NULLIF() for division by zero protection
7. Use WITH clauses (CTEs) for complex queries
8. Use FETCH FIRST n ROWS ONLY instead of LIMIT

BUSINESS CONTEXT:
- PPV_AMT is the AI-based revenue forecast (use for forecasting)
- OPPORTUNITY_VALUE is the deal value (use for pipeline value)
- SALES_STAGE values: 'Qualify', 'Propose', 'Negotiate', 'Won', 'Lost'
- Exclude Won/Lost deals for active pipeline
- Use the MQT table names (PROD_MQT_CONSULTING_PIPELINE, etc.)

IMPORTANT: Return ONLY a valid JSON object:
{
    "sql_query": "SELECT ... FROM ... WHERE ...",
    "explanation": "Explanation of the query approach...",
    "tables_used": ["table_names"],
    "columns_used": ["column_names"],
    "visualization_type": "table",
    "confidence": 0.9
}`, schemaText, dictionaryText, question)
}
