// Package scheduler runs the background patrols: the sweep that retires
// mood observations past their expected duration and the drift patrol
// that walks every persona.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/engine"
	"github.com/praxislabs/praxis/internal/metrics"
	"github.com/praxislabs/praxis/internal/mood"
)

// jobTimeout bounds one background run. Both jobs touch every persona at
// worst; anything slower than this is stuck, not slow.
const jobTimeout = 30 * time.Second

// Options configures the background jobs. Empty schedules disable the
// corresponding job.
type Options struct {
	Engine *engine.Engine
	Ledger mood.Ledger
	Bus    *bus.Bus

	// RetirementSchedule is the cron spec for the observation sweep.
	RetirementSchedule string
	// PatrolSchedule is the cron spec for the drift patrol.
	PatrolSchedule string
	// AutoCorrect applies corrective action when the patrol finds drift
	// instead of only reporting it.
	AutoCorrect bool
}

// Scheduler owns the cron runner and the two jobs.
type Scheduler struct {
	cron        *cron.Cron
	engine      *engine.Engine
	ledger      mood.Ledger
	bus         *bus.Bus
	autoCorrect bool
}

// New wires the jobs onto a cron runner. Nothing runs until Start.
func New(opts Options) (*Scheduler, error) {
	s := &Scheduler{
		cron:        cron.New(),
		engine:      opts.Engine,
		ledger:      opts.Ledger,
		bus:         opts.Bus,
		autoCorrect: opts.AutoCorrect,
	}

	if opts.RetirementSchedule != "" {
		if _, err := s.cron.AddFunc(opts.RetirementSchedule, s.retireExpired); err != nil {
			return nil, fmt.Errorf("retirement schedule %q: %w", opts.RetirementSchedule, err)
		}
	}
	if opts.PatrolSchedule != "" {
		if _, err := s.cron.AddFunc(opts.PatrolSchedule, s.patrol); err != nil {
			return nil, fmt.Errorf("patrol schedule %q: %w", opts.PatrolSchedule, err)
		}
	}
	return s, nil
}

// Start begins running the scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop halts scheduling and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// retireExpired sweeps observations whose expected duration has passed.
// Moods decay instead of sticking forever.
func (s *Scheduler) retireExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.ledger.RetireExpired(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("retirement sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("retired", n).Msg("expired mood observations retired")
	}
}

// patrol evaluates every persona for drift. The gauge tracks the latest
// score for each persona whether or not it crossed the line; crossings
// either publish a finding or, with auto-correct on, apply corrective
// action (which announces itself).
func (s *Scheduler) patrol() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	personas, err := s.engine.Personas().List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("drift patrol could not list personas")
		return
	}

	for _, p := range personas {
		report, err := s.engine.CheckDrift(ctx, p.ID)
		if err != nil {
			log.Error().Err(err).Str("persona", p.ID).Msg("drift check failed")
			continue
		}
		metrics.DriftScore.WithLabelValues(p.ID).Set(float64(report.Score))

		if !report.Detected {
			continue
		}

		if s.autoCorrect {
			_, corrections, err := s.engine.Correct(ctx, p.ID)
			if err != nil {
				log.Error().Err(err).Str("persona", p.ID).Msg("auto-correction failed")
				continue
			}
			log.Warn().
				Str("persona", p.ID).
				Int("score", report.Score).
				Int("corrections", len(corrections)).
				Msg("drift detected and corrected")
			continue
		}

		log.Warn().
			Str("persona", p.ID).
			Int("score", report.Score).
			Strs("indicators", report.Indicators).
			Msg("drift detected")
		if s.bus != nil {
			ev := bus.NewEvent(bus.EventDriftDetected, p.ID)
			ev.DriftScore = report.Score
			ev.Detail = report.Recommendation
			_ = s.bus.Publish(ev)
		}
	}
}
