package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/drift"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
	"github.com/praxislabs/praxis/internal/tone"
)

// overviewWorkers bounds the fan-out when building the all-personas
// snapshot. The work is store reads plus arithmetic; a handful is plenty.
const overviewWorkers = 4

// ErrNoCorrector means the engine was assembled without corrective
// action (memory-backed runs).
var ErrNoCorrector = errors.New("corrective action unavailable: no corrector configured")

// Overview is one persona's full dashboard row.
type Overview struct {
	Persona     *persona.Persona         `json:"persona"`
	Analysis    *mood.Analysis           `json:"analysis"`
	Consistency *drift.ConsistencyReport `json:"consistency"`
	Drift       *drift.Report            `json:"drift"`
}

// windowed fetches the persona and its observations over the trailing
// window. days <= 0 uses the engine default.
func (e *Engine) windowed(ctx context.Context, personaID string, days int) (*persona.Persona, []*mood.Observation, mood.TimeRange, error) {
	p, err := e.personas.Get(ctx, personaID)
	if err != nil {
		return nil, nil, mood.TimeRange{}, fmt.Errorf("load persona: %w", err)
	}
	if days <= 0 {
		days = e.windowDays
	}
	window := mood.Window(e.now(), days)
	obs, err := e.ledger.Query(ctx, mood.Query{PersonaID: personaID, Since: window.Start, Until: window.End})
	if err != nil {
		return nil, nil, mood.TimeRange{}, fmt.Errorf("query observations: %w", err)
	}
	return p, obs, window, nil
}

// Analytics computes the mood analysis for one persona over the trailing
// window.
func (e *Engine) Analytics(ctx context.Context, personaID string, days int) (*mood.Analysis, error) {
	p, obs, window, err := e.windowed(ctx, personaID, days)
	if err != nil {
		return nil, err
	}
	return mood.Analyze(personaID, p.CurrentMood, obs, window), nil
}

// Consistency grades how fully the persona is specified against its
// recent mood history.
func (e *Engine) Consistency(ctx context.Context, personaID string) (*drift.ConsistencyReport, error) {
	p, obs, _, err := e.windowed(ctx, personaID, 0)
	if err != nil {
		return nil, err
	}
	return drift.ScoreConsistency(p, obs), nil
}

// CheckDrift evaluates the persona for drift. Pure read; the patrol and
// Correct are the paths that act on the result.
func (e *Engine) CheckDrift(ctx context.Context, personaID string) (*drift.Report, error) {
	p, obs, _, err := e.windowed(ctx, personaID, 0)
	if err != nil {
		return nil, err
	}
	return drift.Detect(p, obs), nil
}

// Correct runs a drift check and, when drift is present, applies
// corrective action. The returned report always carries the evaluation;
// corrections are nil when none were needed. Applied corrections
// invalidate the response cache, since cached content was generated
// under the uncorrected persona.
func (e *Engine) Correct(ctx context.Context, personaID string) (*drift.Report, []*drift.Correction, error) {
	p, obs, _, err := e.windowed(ctx, personaID, 0)
	if err != nil {
		return nil, nil, err
	}
	report := drift.Detect(p, obs)
	if !report.Detected {
		return report, nil, nil
	}
	if e.corrector == nil {
		return report, nil, ErrNoCorrector
	}

	corrections, err := e.corrector.Apply(ctx, p, report)
	if err != nil {
		return report, nil, fmt.Errorf("apply corrections: %w", err)
	}
	e.cache.Purge()
	e.publishCorrection(report, len(corrections))
	log.Info().
		Str("persona", personaID).
		Int("score", report.Score).
		Int("corrections", len(corrections)).
		Msg("drift corrected")
	return report, corrections, nil
}

func (e *Engine) publishCorrection(report *drift.Report, applied int) {
	if e.bus == nil {
		return
	}
	detected := bus.NewEvent(bus.EventDriftDetected, report.PersonaID)
	detected.DriftScore = report.Score
	detected.Detail = report.Recommendation
	_ = e.bus.Publish(detected)

	corrected := bus.NewEvent(bus.EventCorrectionApplied, report.PersonaID)
	corrected.DriftScore = report.Score
	corrected.Corrections = applied
	_ = e.bus.Publish(corrected)
}

// CorrectionHistory lists past corrective actions, newest first.
func (e *Engine) CorrectionHistory(ctx context.Context, personaID string, limit int) ([]*drift.Correction, error) {
	if e.corrector == nil {
		return nil, ErrNoCorrector
	}
	if _, err := e.personas.Get(ctx, personaID); err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}
	return e.corrector.Log().List(ctx, personaID, limit)
}

// Adaptation computes the tone shift a persona would apply to a message
// right now, without generating anything.
func (e *Engine) Adaptation(ctx context.Context, personaID, message string, userMood *int) (*tone.Adaptation, error) {
	p, err := e.personas.Get(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}
	kind := e.classifier.Classify(message)
	return tone.Calculate(p, tone.Context{MessageKind: kind, UserMood: userMood}), nil
}

// AddObservation validates and appends a manual mood observation, then
// announces it on the bus.
func (e *Engine) AddObservation(ctx context.Context, obs *mood.Observation) error {
	if _, err := e.personas.Get(ctx, obs.PersonaID); err != nil {
		return fmt.Errorf("load persona: %w", err)
	}
	if err := e.ledger.Append(ctx, obs); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	syncMood(ctx, e.personas, obs.PersonaID, obs.Value)
	if e.bus != nil {
		ev := bus.NewEvent(bus.EventMoodAppended, obs.PersonaID)
		ev.MoodValue = obs.Value
		ev.Reason = obs.Reason
		ev.Trigger = string(obs.Trigger.Type)
		ev.ConversationID = obs.Context.ConversationID
		_ = e.bus.Publish(ev)
	}
	return nil
}

// Observations lists a persona's ledger entries in creation order.
func (e *Engine) Observations(ctx context.Context, q mood.Query) ([]*mood.Observation, error) {
	if _, err := e.personas.Get(ctx, q.PersonaID); err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}
	return e.ledger.Query(ctx, q)
}

// Overviews builds the dashboard snapshot, one row per persona, fanning
// the per-persona work across a bounded group. Any failing persona fails
// the batch; rows are in List order.
func (e *Engine) Overviews(ctx context.Context) ([]*Overview, error) {
	personas, err := e.personas.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}

	out := make([]*Overview, len(personas))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewWorkers)
	for i, p := range personas {
		g.Go(func() error {
			window := mood.Window(e.now(), e.windowDays)
			obs, err := e.ledger.Query(ctx, mood.Query{PersonaID: p.ID, Since: window.Start, Until: window.End})
			if err != nil {
				return fmt.Errorf("query observations for %s: %w", p.ID, err)
			}
			out[i] = &Overview{
				Persona:     p,
				Analysis:    mood.Analyze(p.ID, p.CurrentMood, obs, window),
				Consistency: drift.ScoreConsistency(p, obs),
				Drift:       drift.Detect(p, obs),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Personas exposes the persona store for the surfaces that manage
// definitions directly.
func (e *Engine) Personas() persona.Store { return e.personas }

// Classify exposes the engine's message classifier.
func (e *Engine) Classify(message string) tone.Kind {
	return e.classifier.Classify(message)
}
