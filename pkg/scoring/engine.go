// Package scoring computes five-component relational risk scores over
// the ontology graph.
//
// The total score is a fixed-weight sum of five components, each a
// weighted sum of normalized factors. All randomness-free: the same graph
// state as of the same instant always yields the same score. The external
// ML predictor is surfaced as an independent detail and never blended
// into the rule-based total.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/patterns"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/types"
	"github.com/soundprediction/ontoscore/pkg/utils"
)

// PredictionProvider fetches the external model's deterioration estimate
// for one company. Implementations return UpstreamUnavailableError when
// the collaborator cannot be reached.
type PredictionProvider interface {
	Predict(ctx context.Context, companyID string) (*types.Prediction, error)
}

// AuditSink records finished score results for offline analysis.
type AuditSink interface {
	Record(ctx context.Context, result *types.RiskScoreResult) error
}

// Engine scores companies. Safe for concurrent use.
type Engine struct {
	store     *ontology.Store
	detector  *patterns.Detector
	predictor PredictionProvider
	audit     AuditSink
	cfg       *Config
	logger    *slog.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPredictor attaches the external prediction collaborator.
func WithPredictor(p PredictionProvider) EngineOption {
	return func(e *Engine) { e.predictor = p }
}

// WithAuditSink attaches a sink receiving every finished result.
func WithAuditSink(sink AuditSink) EngineOption {
	return func(e *Engine) { e.audit = sink }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a scoring engine. A nil cfg means DefaultConfig.
func NewEngine(store *ontology.Store, detector *patterns.Detector, cfg *Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	e := &Engine{
		store:    store,
		detector: detector,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ScoreOption adjusts one scoring call.
type ScoreOption func(*scoreOptions)

type scoreOptions struct {
	asOf    time.Time
	persist bool
}

// AsOf scores against the graph state valid at t instead of now.
func AsOf(t time.Time) ScoreOption {
	return func(o *scoreOptions) { o.asOf = t }
}

// Persist writes a RiskScore snapshot and, on a severity-boundary
// crossing, a RelationalRiskSignal back to the store.
func Persist() ScoreOption {
	return func(o *scoreOptions) { o.persist = true }
}

// CalculateRiskScore scores one company. Evidence gathering (links,
// patterns, prediction) fans out concurrently; the five components are
// then computed in a pool sized to the component count. A truncated
// pattern traversal degrades the result, not the call; an unreachable
// predictor degrades only its detail.
func (e *Engine) CalculateRiskScore(ctx context.Context, companyID string, opts ...ScoreOption) (*types.RiskScoreResult, error) {
	options := scoreOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	asOf := options.asOf
	if asOf.IsZero() {
		asOf = e.now()
	}

	company, err := e.store.GetObject(ctx, companyID, asOf)
	if err != nil {
		return nil, err
	}
	if company.Type != types.ObjectTypeCompany {
		return nil, &types.InvalidReferenceError{
			ObjectID: companyID,
			Reason:   fmt.Sprintf("scoring target is %s, not a company", company.Type),
		}
	}

	in, prediction, predictErr, err := e.gather(ctx, company, asOf)
	if err != nil {
		return nil, err
	}

	components, err := e.computeComponents(ctx, in)
	if err != nil {
		return nil, err
	}
	e.attachModelRisk(components, prediction, predictErr)

	total := 0.0
	byName := make(map[types.ComponentName]types.Component, len(components))
	for _, c := range components {
		total += c.Weight * c.Score
		byName[c.Name] = c
	}
	total = round4(taxonomy.Clamp01(total))

	result := &types.RiskScoreResult{
		CompanyID:    company.ID,
		CompanyName:  company.Name(),
		TotalScore:   total,
		RiskLevel:    types.RiskLevelFor(total),
		Components:   byName,
		Warnings:     e.warnings(components, in),
		Truncated:    in.patterns != nil && in.patterns.Truncated,
		CalculatedAt: asOf,
	}

	if options.persist {
		if err := e.persist(ctx, company, result, asOf); err != nil {
			return nil, err
		}
	}
	if e.audit != nil {
		if err := e.audit.Record(ctx, result); err != nil {
			e.logger.Warn("score audit record failed", "company_id", company.ID, "error", err)
		}
	}

	e.logger.Info("scored company",
		"company_id", company.ID, "total_score", total, "risk_level", result.RiskLevel)
	return result, nil
}

// gather fans out the read-only evidence queries. The prediction error is
// returned separately: it degrades the model detail, never the score.
func (e *Engine) gather(ctx context.Context, company *types.Object, asOf time.Time) (*inputs, *types.Prediction, error, error) {
	var (
		links        []*types.Link
		patternsRes  *patterns.Result
		prediction   *types.Prediction
		predictError error
	)
	executor := utils.NewConcurrentExecutor(3)
	errs := executor.Execute(ctx,
		func() error {
			for link, err := range e.store.GetLinks(ctx, company.ID, ontology.LinkQuery{AsOf: asOf}) {
				if err != nil {
					return err
				}
				links = append(links, link)
			}
			return nil
		},
		func() error {
			res, err := e.detector.DetectPatterns(ctx, company.ID, asOf)
			if err != nil {
				return err
			}
			patternsRes = res
			return nil
		},
		func() error {
			if e.predictor == nil {
				predictError = errors.New("no prediction provider configured")
				return nil
			}
			p, err := e.predictor.Predict(ctx, company.ID)
			if err != nil {
				predictError = err
				return nil
			}
			prediction = p
			return nil
		},
	)
	for _, err := range errs {
		if err != nil {
			return nil, nil, nil, err
		}
	}

	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	in := &inputs{
		company:    company,
		links:      links,
		patterns:   patternsRes,
		classifier: e.store.Classifier(),
		asOf:       asOf,
		cfg:        e.cfg,
	}
	return in, prediction, predictError, nil
}

// computeComponents walks the component table concurrently, one pool slot
// per component.
func (e *Engine) computeComponents(ctx context.Context, in *inputs) ([]types.Component, error) {
	tasks := make([]func() (types.Component, error), len(componentTable))
	for i, spec := range componentTable {
		spec := spec
		tasks[i] = func() (types.Component, error) {
			return e.computeComponent(spec, in), nil
		}
	}
	results, errs := utils.ExecuteWithResults(ctx, len(tasks), tasks...)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Engine) computeComponent(spec componentSpec, in *inputs) types.Component {
	factors := make([]types.Factor, len(spec.factors))
	score := 0.0
	for i, f := range spec.factors {
		raw := f.raw(in)
		normalized := e.cfg.curve(f.curveKey).Normalize(raw)
		factors[i] = types.Factor{
			Name:            f.name,
			RawValue:        raw,
			NormalizedScore: round4(normalized),
			Weight:          f.weight,
		}
		score += f.weight * normalized
	}

	component := types.Component{
		Name:    spec.name,
		Score:   round4(taxonomy.Clamp01(score)),
		Weight:  e.cfg.Weights[spec.name],
		Factors: factors,
	}

	if spec.amplified {
		if amp := in.amplifier(); amp > 1 {
			component.Score = round4(taxonomy.Clamp01(score * amp))
			component.Details = map[string]types.Detail{
				"amplification": {
					Value:  types.Float(round4(amp)),
					Reason: matchedPatternIDs(in.patterns),
				},
			}
		}
	}
	return component
}

// attachModelRisk surfaces the external prediction on the network
// component. An unavailable predictor marks the detail degraded instead
// of pretending a zero.
func (e *Engine) attachModelRisk(components []types.Component, prediction *types.Prediction, predictErr error) {
	for i := range components {
		if components[i].Name != types.ComponentNetworkRisk {
			continue
		}
		if components[i].Details == nil {
			components[i].Details = make(map[string]types.Detail)
		}
		if prediction != nil {
			components[i].Details["model_risk"] = types.Detail{
				Value:  types.Float(prediction.DeteriorationProbability),
				Reason: "model " + prediction.ModelVersion,
			}
		} else {
			reason := "prediction unavailable"
			if predictErr != nil {
				reason = predictErr.Error()
			}
			components[i].Details["model_risk"] = types.Detail{Degraded: true, Reason: reason}
		}
		return
	}
}

// warnings lists elevated factors, strongest first, ties broken by
// component declaration order.
func (e *Engine) warnings(components []types.Component, in *inputs) []string {
	type flagged struct {
		order int
		score float64
		text  string
	}
	var all []flagged
	for order, spec := range componentTable {
		component := components[order]
		for i, f := range spec.factors {
			factor := component.Factors[i]
			if factor.NormalizedScore > e.cfg.WarningThreshold {
				all = append(all, flagged{
					order: order,
					score: factor.NormalizedScore,
					text:  fmt.Sprintf("%s: %s (%.2f)", component.Name, f.warning, factor.NormalizedScore),
				})
			}
		}
	}
	if in.patterns != nil && in.patterns.Truncated {
		all = append(all, flagged{
			order: len(componentTable),
			text:  fmt.Sprintf("pattern detection truncated after visiting %d objects; score may understate network risk", in.patterns.Visited),
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})
	out := make([]string, len(all))
	for i, w := range all {
		out[i] = w.text
	}
	return out
}

// persist appends a RiskScore snapshot to the company's score chain and,
// when severity crossed a boundary relative to the prior snapshot,
// records a RelationalRiskSignal linked to the company.
func (e *Engine) persist(ctx context.Context, company *types.Object, result *types.RiskScoreResult, asOf time.Time) error {
	snapshotKey := "risk_score:" + company.IdentityKey

	priorLevel := types.RiskLevelLow
	hadPrior := false
	prior, err := e.store.GetObjectByIdentity(ctx, snapshotKey, asOf)
	switch {
	case err == nil:
		hadPrior = true
		if level, ok := prior.Properties["risk_level"].AsString(); ok {
			priorLevel = types.RiskLevel(level)
		}
	case errors.Is(err, &types.NotFoundError{}):
		// First snapshot for this company.
	default:
		return err
	}

	if _, err := e.store.UpsertObject(ctx, ontology.UpsertRequest{
		Type:        types.ObjectTypeRiskScore,
		IdentityKey: snapshotKey,
		Confidence:  1.0,
		Properties: types.Properties{
			"company_id":    types.String(company.ID),
			"total_score":   types.Float(result.TotalScore),
			"risk_level":    types.String(string(result.RiskLevel)),
			"truncated":     types.Bool(result.Truncated),
			"calculated_at": types.String(asOf.UTC().Format(time.RFC3339Nano)),
		},
	}); err != nil {
		return fmt.Errorf("persist score snapshot: %w", err)
	}

	crossed := hadPrior && result.RiskLevel.Rank() != priorLevel.Rank()
	firstElevated := !hadPrior && result.RiskLevel.Rank() > types.RiskLevelLow.Rank()
	if !crossed && !firstElevated {
		return nil
	}

	signalID, err := e.store.UpsertObject(ctx, ontology.UpsertRequest{
		Type:        types.ObjectTypeRelationalRiskSignal,
		IdentityKey: "signal:" + uuid.NewString(),
		Confidence:  1.0,
		Properties: types.Properties{
			"company_id":  types.String(company.ID),
			"status":      types.String(string(types.StatusDetected)),
			"from_level":  types.String(string(priorLevel)),
			"to_level":    types.String(string(result.RiskLevel)),
			"total_score": types.Float(result.TotalScore),
		},
	})
	if err != nil {
		return fmt.Errorf("persist risk signal: %w", err)
	}

	if _, err := e.store.CreateLink(ctx, ontology.CreateLinkRequest{
		Type:       types.LinkFlaggedFor,
		SourceID:   company.ID,
		TargetID:   signalID,
		Strength:   1.0,
		Confidence: 1.0,
	}); err != nil {
		return fmt.Errorf("link risk signal: %w", err)
	}

	e.logger.Info("risk severity boundary crossed",
		"company_id", company.ID, "from", priorLevel, "to", result.RiskLevel, "signal_id", signalID)
	return nil
}

func matchedPatternIDs(res *patterns.Result) string {
	if res == nil || len(res.Matches) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(res.Matches))
	var ids []string
	for _, m := range res.Matches {
		if _, ok := seen[m.PatternID]; ok {
			continue
		}
		seen[m.PatternID] = struct{}{}
		ids = append(ids, m.PatternID)
	}
	sort.Strings(ids)
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
