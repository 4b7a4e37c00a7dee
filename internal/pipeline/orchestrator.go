package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
	"github.com/Yerdna1/Text-to-SQL/internal/llm"
	"github.com/Yerdna1/Text-to-SQL/internal/registry"
)

// Config owns the pipeline's collaborators: the schema registry, the
// optional regeneration provider, and the dialect setting. Inject it into
// the Orchestrator at construction; there is no process-wide state.
type Config struct {
	// Dialect selects the SQL flavor everywhere. Required.
	Dialect dialect.Dialect

	// RowLimit bounds unlimited non-aggregating queries. Zero means the
	// optimizer default.
	RowLimit int

	// Registry is the schema catalog. An empty registry is replaced by the
	// built-in default catalog at request time.
	Registry *registry.Registry

	// Provider is the optional LLM used for regeneration.
	Provider llm.Provider

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Orchestrator sequences the agent pipeline over one request:
//
//	SyntaxValidator → WhereClauseEnhancer → QueryOptimizer → ColumnValidation
//	                                         ├─ ok          → finalize
//	                                         └─ needs regen → SQLRegeneration → recheck
//
// Stage failure is non-fatal; the best-available query is threaded forward
// and every invocation lands in the processing log.
type Orchestrator struct {
	cfg             Config
	validator       Agent
	enhancer        Agent
	optimizer       Agent
	columnValidator Agent
	regenerator     Agent
	logger          *slog.Logger
}

// New builds an orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "orchestrator"))

	return &Orchestrator{
		cfg:             cfg,
		validator:       NewSyntaxValidator(logger),
		enhancer:        NewWhereEnhancer(logger),
		optimizer:       NewOptimizer(cfg.RowLimit, logger),
		columnValidator: NewColumnValidator(logger),
		regenerator:     NewRegenerator(cfg.Provider, logger),
		logger:          logger,
	}
}

// Dialect returns the configured target dialect.
func (o *Orchestrator) Dialect() dialect.Dialect { return o.cfg.Dialect }

// BuildContext assembles the immutable per-request context from the
// configured registry, substituting the default catalog when it is empty.
// The second return reports whether the substitution happened.
func (o *Orchestrator) BuildContext(question string) (*Context, bool) {
	reg := o.cfg.Registry
	substituted := false
	if reg == nil || reg.Empty() {
		reg = registry.DefaultCatalog()
		substituted = true
	}

	return &Context{
		Question:         question,
		SchemaInfo:       reg.SchemaText(),
		DataDictionary:   reg.DictionaryText(),
		TablesAvailable:  reg.Tables(),
		ColumnsAvailable: reg.ColumnMap(),
		Dialect:          o.cfg.Dialect,
	}, substituted
}

// Process runs the full pipeline on a question and its initial SQL.
func (o *Orchestrator) Process(ctx context.Context, question, initialSQL string) *Result {
	qc, catalogSubstituted := o.BuildContext(question)
	if catalogSubstituted {
		o.logger.Warn("no tables loaded in registry, using default catalog")
	}

	var (
		log                   []ProcessingStep
		regenerationAttempted bool
	)
	currentData := map[string]any{keySQLQuery: initialSQL}

	// Stage 1: syntax validation. Failure is non-terminal; the best
	// available query continues through the pipeline.
	validatorResp := o.runAgent(ctx, o.validator, o.validator.Name(), currentData, qc)
	validatorStep := stepFrom(o.validator.Name(), validatorResp, true)
	if catalogSubstituted {
		if validatorStep.Details == nil {
			validatorStep.Details = map[string]any{}
		}
		validatorStep.Details["warnings"] = []string{"no tables loaded; default catalog substituted"}
	}
	log = append(log, validatorStep)

	if validatorResp.Success {
		currentData = validatorResp.Data
	} else {
		best := getString(validatorResp.Data, keyValidatedQuery)
		if best == "" {
			best = initialSQL
		}
		currentData = map[string]any{keySQLQuery: best, keyOriginalQuery: initialSQL}
	}

	// Stage 2: WHERE-clause enhancement.
	enhancerResp := o.runAgent(ctx, o.enhancer, o.enhancer.Name(), currentData, qc)
	enhancerStep := stepFrom(o.enhancer.Name(), enhancerResp, false)
	enhancerStep.Details = map[string]any{"enhancements": getStrings(enhancerResp.Data, "enhancements")}
	log = append(log, enhancerStep)
	if enhancerResp.Success {
		currentData = enhancerResp.Data
	}

	// Stage 3: optimization.
	optimizerResp := o.runAgent(ctx, o.optimizer, o.optimizer.Name(), currentData, qc)
	optimizerStep := stepFrom(o.optimizer.Name(), optimizerResp, false)
	optimizerStep.Details = map[string]any{"optimizations": getStrings(optimizerResp.Data, "optimizations")}
	log = append(log, optimizerStep)
	if optimizerResp.Success {
		currentData = optimizerResp.Data
	}

	// Stage 4: column validation.
	columnResp := o.runAgent(ctx, o.columnValidator, o.columnValidator.Name(), currentData, qc)
	columnStep := stepFrom(o.columnValidator.Name(), columnResp, true)
	columnStep.Details = map[string]any{
		"missing_columns": columnResp.Data["missing_columns"],
		"substitutions":   getStrings(columnResp.Data, "substitutions_made"),
	}
	log = append(log, columnStep)

	// Stage 5: regeneration when columns could not be mapped, followed by a
	// recheck of the regenerated query.
	switch {
	case !columnResp.Success && getBool(columnResp.Data, keyNeedsRegeneration):
		regenInput := map[string]any{
			keyRegenerationPrompt: getString(columnResp.Data, keyRegenerationPrompt),
			keyOriginalQuery:      getString(columnResp.Data, keyOriginalQuery),
		}
		regenResp := o.runAgent(ctx, o.regenerator, o.regenerator.Name(), regenInput, qc)
		log = append(log, stepFrom(o.regenerator.Name(), regenResp, true))

		if regenResp.Success {
			regenerationAttempted = true
			recheckInput := map[string]any{keySQLQuery: getString(regenResp.Data, keyRegeneratedQuery)}

			recheckResp := o.runAgent(ctx, o.columnValidator, ColumnValidatorRecheckName, recheckInput, qc)
			recheckStep := stepFrom(ColumnValidatorRecheckName, recheckResp, true)
			recheckStep.Message = "Regenerated query validation: " + recheckResp.Message
			log = append(log, recheckStep)

			if recheckResp.Success {
				currentData = recheckResp.Data
			} else {
				// Regeneration did not converge; keep the mapped query from
				// the first validation pass.
				currentData = columnResp.Data
			}
		} else if getString(columnResp.Data, keyValidatedQuery) != "" {
			currentData = columnResp.Data
		}

	case columnResp.Success:
		currentData = columnResp.Data
	}

	// Aggregate confidence over the steps that reported one.
	var sum float64
	var reported int
	for _, step := range log {
		if step.reported {
			sum += step.Confidence
			reported++
		}
	}
	overallConfidence := 0.7
	if reported > 0 {
		overallConfidence = sum / float64(reported)
	}

	finalQuery := inputQuery(currentData,
		keyValidatedQuery, keyRegeneratedQuery, keyOptimizedQuery, keyEnhancedQuery)
	if finalQuery == "" {
		finalQuery = initialSQL
	}

	syntaxCorrections := len(getStrings(validatorResp.Data, "corrections"))

	// Success iff no critical stage failed and the run either improved the
	// query, produced a non-empty query, or carries high confidence.
	criticalFailure := !validatorResp.Success
	success := !criticalFailure &&
		(syntaxCorrections > 0 || finalQuery != "" || overallConfidence > 0.7)

	result := &Result{
		Success:               success,
		FinalQuery:            finalQuery,
		OriginalQuery:         initialSQL,
		ProcessingLog:         log,
		OverallConfidence:     overallConfidence,
		RegenerationAttempted: regenerationAttempted,
		Improvements: Improvements{
			SyntaxCorrections:  syntaxCorrections,
			WhereEnhancements:  len(getStrings(enhancerResp.Data, "enhancements")),
			Optimizations:      len(getStrings(optimizerResp.Data, "optimizations")),
			ColumnFixes:        len(getStrings(columnResp.Data, "substitutions_made")),
			RegenerationNeeded: getBool(columnResp.Data, keyNeedsRegeneration),
		},
	}

	o.logger.Info("pipeline complete",
		slog.Bool("success", result.Success),
		slog.Float64("overall_confidence", result.OverallConfidence),
		slog.Bool("regeneration_attempted", result.RegenerationAttempted),
	)
	return result
}

// runAgent invokes one agent, converting a panic into a failed response so
// no stage can abort the pipeline.
func (o *Orchestrator) runAgent(ctx context.Context, agent Agent, name string, input map[string]any, qc *Context) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("agent panicked",
				slog.String("agent", name),
				slog.Any("panic", r),
			)
			resp = &Response{
				Success: false,
				Message: fmt.Sprintf("agent %s failed unexpectedly: %v", name, r),
				Data:    map[string]any{},
			}
		}
	}()

	resp = agent.Process(ctx, input, qc)
	if resp == nil {
		resp = &Response{Success: false, Message: "agent returned no response", Data: map[string]any{}}
	}
	resp.Confidence = clampConfidence(resp.Confidence)
	return resp
}

// stepFrom converts an agent response into a log entry. reported marks the
// step's confidence as part of the overall mean.
func stepFrom(name string, resp *Response, reported bool) ProcessingStep {
	return ProcessingStep{
		Agent:      name,
		Success:    resp.Success,
		Message:    resp.Message,
		Confidence: resp.Confidence,
		reported:   reported,
	}
}
