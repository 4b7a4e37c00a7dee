package dialect

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"DB2", DB2, false},
		{"db2", DB2, false},
		{"SQLite", SQLite, false},
		{"sqlite", SQLite, false},
		{" SQLITE ", SQLite, false},
		{"postgres", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestTranslateToDB2(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "limit to fetch first",
			in:   "SELECT * FROM PROD_MQT_CONSULTING_PIPELINE LIMIT 10",
			want: "SELECT * FROM PROD_MQT_CONSULTING_PIPELINE FETCH FIRST 10 ROWS ONLY",
		},
		{
			name: "strftime year",
			in:   "SELECT * FROM T WHERE strftime('%Y', SNAPSHOT_DATE) = '2026'",
			want: "SELECT * FROM T WHERE YEAR(SNAPSHOT_DATE) = '2026'",
		},
		{
			name: "date now",
			in:   "SELECT date('now') FROM T",
			want: "SELECT CURRENT DATE FROM T",
		},
		{
			name: "datetime now",
			in:   "SELECT datetime('now') FROM T",
			want: "SELECT CURRENT TIMESTAMP FROM T",
		},
		{
			name: "substring",
			in:   "SELECT SUBSTRING(MARKET, 1, 3) FROM T",
			want: "SELECT SUBSTR(MARKET, 1, 3) FROM T",
		},
		{
			name: "getdate and now",
			in:   "SELECT GETDATE(), NOW() FROM T",
			want: "SELECT CURRENT DATE, CURRENT TIMESTAMP FROM T",
		},
		{
			name: "unknown constructs pass through",
			in:   "SELECT MARKET, SUM(PPV_AMT) FROM T GROUP BY MARKET",
			want: "SELECT MARKET, SUM(PPV_AMT) FROM T GROUP BY MARKET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Translate(tt.in, DB2)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateToSQLite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fetch first to limit",
			in:   "SELECT * FROM T FETCH FIRST 100 ROWS ONLY",
			want: "SELECT * FROM T LIMIT 100",
		},
		{
			name: "year and month",
			in:   "SELECT * FROM T WHERE YEAR(SNAPSHOT_DATE) = 2026 AND MONTH(SNAPSHOT_DATE) = 7",
			want: "SELECT * FROM T WHERE strftime('%Y', SNAPSHOT_DATE) = 2026 AND strftime('%m', SNAPSHOT_DATE) = 7",
		},
		{
			name: "current date inside year",
			in:   "SELECT * FROM T WHERE YEAR(D) = YEAR(CURRENT DATE)",
			want: "SELECT * FROM T WHERE strftime('%Y', D) = strftime('%Y', date('now'))",
		},
		{
			name: "decimal drops precision",
			in:   "SELECT DECIMAL(SUM(PPV_AMT) / 1000000, 18, 2) FROM T",
			want: "SELECT ROUND(SUM(PPV_AMT) / 1000000, 2) FROM T",
		},
		{
			name: "quarter expansion",
			in:   "SELECT QUARTER(SNAPSHOT_DATE) FROM T",
			want: "SELECT ((CAST(strftime('%m', SNAPSHOT_DATE) AS INTEGER) - 1) / 3 + 1) FROM T",
		},
		{
			name: "full outer join",
			in:   "SELECT * FROM A FULL OUTER JOIN B ON A.ID = B.ID",
			want: "SELECT * FROM A LEFT JOIN B ON A.ID = B.ID",
		},
		{
			name: "nulls last stripped",
			in:   "SELECT * FROM T ORDER BY PPV_AMT DESC NULLS LAST",
			want: "SELECT * FROM T ORDER BY PPV_AMT DESC",
		},
		{
			name: "cast double to real",
			in:   "SELECT CAST(PPV_AMT AS DOUBLE) FROM T",
			want: "SELECT CAST(PPV_AMT AS REAL) FROM T",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Translate(tt.in, SQLite)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateRecordsReasons(t *testing.T) {
	_, rewrites := Translate("SELECT * FROM T LIMIT 5", DB2)
	require.Len(t, rewrites, 1)
	assert.Equal(t, "limit-to-fetch-first", rewrites[0].Rule)
	assert.Contains(t, rewrites[0].Reason, "FETCH FIRST")
}

func TestTranslateLeavesLiteralsAndComments(t *testing.T) {
	in := "SELECT * FROM T WHERE NOTE = 'use LIMIT 5 here' -- LIMIT 9\nLIMIT 3"
	got, rewrites := Translate(in, DB2)

	assert.Contains(t, got, "'use LIMIT 5 here'")
	assert.Contains(t, got, "-- LIMIT 9")
	assert.Contains(t, got, "FETCH FIRST 3 ROWS ONLY")
	assert.NotContains(t, got, "LIMIT 3")
	require.Len(t, rewrites, 1)
}

func TestTranslateBlockCommentPreserved(t *testing.T) {
	in := "SELECT /* keep YEAR(X) */ date('now') FROM T"
	got, _ := Translate(in, DB2)
	assert.Equal(t, "SELECT /* keep YEAR(X) */ CURRENT DATE FROM T", got)
}

// Round trip holds on the reversible rule subset: limits, YEAR/MONTH, and the
// current date/timestamp forms.
func TestTranslateRoundTrip(t *testing.T) {
	queries := []string{
		"SELECT * FROM PROD_MQT_CONSULTING_PIPELINE FETCH FIRST 10 ROWS ONLY",
		"SELECT MARKET FROM T WHERE YEAR(SNAPSHOT_DATE) = 2026",
		"SELECT MARKET FROM T WHERE MONTH(SNAPSHOT_DATE) = 7",
		"SELECT CURRENT DATE FROM T",
		"SELECT CURRENT TIMESTAMP FROM T",
	}

	normalize := func(s string) string {
		return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(s, " "))
	}

	for _, q := range queries {
		down, _ := Translate(q, SQLite)
		up, _ := Translate(down, DB2)
		assert.Equal(t, normalize(q), normalize(up), q)
	}
}

func TestStripLiteralsAndComments(t *testing.T) {
	in := "SELECT A FROM T WHERE B = 'x -- not a comment' -- real comment\n/* block */ AND C = 1"
	got := StripLiteralsAndComments(in)

	assert.Contains(t, got, "''")
	assert.NotContains(t, got, "not a comment")
	assert.NotContains(t, got, "real comment")
	assert.NotContains(t, got, "block")
	assert.Contains(t, got, "AND C = 1")
}

func TestLimitClause(t *testing.T) {
	assert.Equal(t, "FETCH FIRST 1000 ROWS ONLY", DB2.LimitClause(1000))
	assert.Equal(t, "LIMIT 1000", SQLite.LimitClause(1000))
}
