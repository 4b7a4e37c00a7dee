// Parallel fan-out generation: the same question goes to every connected
// provider at once, answers are compared structurally, and one winner is
// picked by a composite score.
package llm

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ConfidenceLevel grades the structural agreement of a result set.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// whereSimilarityThreshold is the identifier-token IoU above which WHERE
// clauses count as agreeing.
const whereSimilarityThreshold = 0.5

// ProviderSpec configures one fan-out target.
type ProviderSpec struct {
	Kind        Kind
	Model       string
	Credentials Credentials

	// Timeout bounds a single generation call. Zero means no per-call
	// deadline beyond the caller's context.
	Timeout time.Duration
}

// Comparison summarizes structural agreement across valid results.
type Comparison struct {
	Status            string          `json:"status"`
	Message           string          `json:"message,omitempty"`
	SelectMatch       bool            `json:"select_match"`
	FromMatch         bool            `json:"from_match"`
	WhereSimilarity   bool            `json:"where_similarity"`
	OverallSimilarity bool            `json:"overall_similarity"`
	ConfidenceLevel   ConfidenceLevel `json:"confidence_level"`
}

// ParallelResult is the outcome of one fan-out generation.
type ParallelResult struct {
	Results    []*Answer   `json:"results"`
	Comparison *Comparison `json:"comparison"`
	BestResult *Answer     `json:"best_result"`
}

// Generator fans a question out to several providers.
type Generator struct {
	providers []Provider
	timeouts  map[Provider]time.Duration
	preferred map[Kind]bool
	logger    *slog.Logger
}

// NewGenerator constructs the configured providers and keeps the ones whose
// liveness check passed. Preferred kinds earn a scoring bonus.
func NewGenerator(ctx context.Context, specs []ProviderSpec, preferred []Kind, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		timeouts:  make(map[Provider]time.Duration),
		preferred: make(map[Kind]bool, len(preferred)),
		logger:    logger.With(slog.String("component", "parallel_generator")),
	}
	for _, k := range preferred {
		g.preferred[k] = true
	}

	for _, spec := range specs {
		client := NewClient(ctx, spec.Kind, spec.Model, spec.Credentials, logger)
		if !client.Connected() {
			g.logger.Warn("dropping disconnected provider",
				slog.String("kind", string(spec.Kind)),
				slog.String("model", spec.Model),
			)
			continue
		}
		g.providers = append(g.providers, client)
		g.timeouts[client] = spec.Timeout
	}

	return g
}

// NewGeneratorWithProviders wires pre-built providers, keeping connected
// ones. Used by tests and by callers that manage provider lifecycles.
func NewGeneratorWithProviders(providers []Provider, preferred []Kind, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		timeouts:  make(map[Provider]time.Duration),
		preferred: make(map[Kind]bool, len(preferred)),
		logger:    logger.With(slog.String("component", "parallel_generator")),
	}
	for _, k := range preferred {
		g.preferred[k] = true
	}
	for _, p := range providers {
		if p.Connected() {
			g.providers = append(g.providers, p)
		}
	}
	return g
}

// Providers returns the connected providers in registration order.
func (g *Generator) Providers() []Provider {
	return append([]Provider(nil), g.providers...)
}

// Generate runs all providers concurrently and scores the answers. Results
// keep provider registration order, so comparison and selection are
// deterministic regardless of completion order. Cancelling ctx cancels every
// in-flight call.
func (g *Generator) Generate(ctx context.Context, question, schemaText, dictionaryText string) *ParallelResult {
	results := make([]*Answer, len(g.providers))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range g.providers {
		i, p := i, p
		eg.Go(func() error {
			callCtx := egCtx
			if timeout := g.timeouts[p]; timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(egCtx, timeout)
				defer cancel()
			}

			start := time.Now()
			answer, err := p.GenerateSQL(callCtx, question, schemaText, dictionaryText)
			elapsed := time.Since(start).Seconds()

			if err != nil {
				g.logger.Warn("provider generation failed",
					slog.String("provider", string(p.Kind())),
					slog.String("error", err.Error()),
				)
				results[i] = &Answer{
					Provider:          string(p.Kind()),
					Model:             p.Model(),
					GenerationSeconds: elapsed,
					Err:               err.Error(),
				}
				return nil
			}

			answer.GenerationSeconds = elapsed
			results[i] = answer
			return nil
		})
	}
	_ = eg.Wait()

	// A cancelled worker can leave a nil slot; surface it as an errored
	// result rather than dropping the provider silently.
	for i, r := range results {
		if r == nil {
			results[i] = &Answer{
				Provider: string(g.providers[i].Kind()),
				Model:    g.providers[i].Model(),
				Err:      context.Canceled.Error(),
			}
		}
	}

	return &ParallelResult{
		Results:    results,
		Comparison: compareResults(results),
		BestResult: g.selectBest(results),
	}
}

// queryShape is a normalized query split into its comparable spans.
type queryShape struct {
	selectSpan string
	fromSpan   string
	whereSpan  string
}

var identifierPattern = regexp.MustCompile(`\b[A-Z_][A-Z0-9_]*\b`)

func shapeOf(sql string) queryShape {
	normalized := strings.ToUpper(sql)
	normalized = strings.Join(strings.Fields(normalized), " ")

	shape := queryShape{}
	if _, after, ok := strings.Cut(normalized, "SELECT "); ok {
		if sel, _, ok := strings.Cut(after, " FROM "); ok {
			shape.selectSpan = strings.TrimSpace(sel)
		}
	}
	if _, after, ok := strings.Cut(normalized, " FROM "); ok {
		shape.fromSpan = strings.TrimSpace(cutAtAny(after, " WHERE ", " GROUP BY ", " ORDER BY ", ";"))
	}
	if _, after, ok := strings.Cut(normalized, " WHERE "); ok {
		shape.whereSpan = strings.TrimSpace(cutAtAny(after, " GROUP BY ", " ORDER BY ", ";"))
	}
	return shape
}

func cutAtAny(s string, seps ...string) string {
	for _, sep := range seps {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

// compareResults computes structural similarity across the valid results.
func compareResults(results []*Answer) *Comparison {
	var shapes []queryShape
	for _, r := range results {
		if r.Valid() {
			shapes = append(shapes, shapeOf(r.SQLQuery))
		}
	}

	if len(shapes) < 2 {
		return &Comparison{
			Status:          "insufficient_results",
			Message:         "not enough valid queries to compare",
			ConfidenceLevel: ConfidenceLow,
		}
	}

	selectMatch := allEqual(shapes, func(s queryShape) string { return s.selectSpan })
	fromMatch := allEqual(shapes, func(s queryShape) string { return s.fromSpan })
	whereSimilar := whereSimilarity(shapes)

	overall := selectMatch && fromMatch && whereSimilar
	level := ConfidenceLow
	switch {
	case overall:
		level = ConfidenceHigh
	case selectMatch || fromMatch || whereSimilar:
		level = ConfidenceMedium
	}

	return &Comparison{
		Status:            "compared",
		SelectMatch:       selectMatch,
		FromMatch:         fromMatch,
		WhereSimilarity:   whereSimilar,
		OverallSimilarity: overall,
		ConfidenceLevel:   level,
	}
}

func allEqual(shapes []queryShape, span func(queryShape) string) bool {
	first := span(shapes[0])
	for _, s := range shapes[1:] {
		if span(s) != first {
			return false
		}
	}
	return true
}

// whereSimilarity is true when all WHERE spans are empty, or when the
// intersection-over-union of their identifier tokens exceeds the threshold.
func whereSimilarity(shapes []queryShape) bool {
	allEmpty := true
	var tokenSets []map[string]struct{}
	for _, s := range shapes {
		set := make(map[string]struct{})
		if s.whereSpan != "" {
			allEmpty = false
			for _, tok := range identifierPattern.FindAllString(s.whereSpan, -1) {
				set[tok] = struct{}{}
			}
		}
		tokenSets = append(tokenSets, set)
	}
	if allEmpty {
		return true
	}

	intersection := make(map[string]struct{})
	union := make(map[string]struct{})
	for tok := range tokenSets[0] {
		intersection[tok] = struct{}{}
	}
	for _, set := range tokenSets {
		for tok := range set {
			union[tok] = struct{}{}
		}
		for tok := range intersection {
			if _, ok := set[tok]; !ok {
				delete(intersection, tok)
			}
		}
	}
	if len(union) == 0 {
		return true
	}
	return float64(len(intersection))/float64(len(union)) > whereSimilarityThreshold
}

// selectBest scores each valid answer and returns the highest; ties resolve
// to the first encountered. With no valid answers, the first errored result
// is returned so the caller still sees what went wrong.
func (g *Generator) selectBest(results []*Answer) *Answer {
	var best *Answer
	bestScore := 0.0

	for _, r := range results {
		if !r.Valid() {
			continue
		}
		score := g.score(r)
		if best == nil || score > bestScore {
			best = r
			bestScore = score
		}
	}
	if best != nil {
		return best
	}
	if len(results) > 0 {
		return results[0]
	}
	return nil
}

// score is the composite quality score:
// 100·confidence + explanation depth (capped) + speed bonus + preference.
func (g *Generator) score(a *Answer) float64 {
	score := a.Confidence * 100
	explanation := float64(len(a.Explanation)) / 10
	if explanation > 20 {
		explanation = 20
	}
	score += explanation
	if speed := 10 - a.GenerationSeconds; speed > 0 {
		score += speed
	}
	if g.preferred[Kind(a.Provider)] {
		score += 5
	}
	return score
}
