package drift

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/data"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

// moodClampBound is how far from neutral a corrected mood may sit.
const moodClampBound = 50

// correctionReason is the ledger reason attached to clamp observations.
const correctionReason = "drift correction"

// defaultTraits top up personas whose trait set is too thin to anchor
// consistent behavior.
var defaultTraits = []string{"collaborative", "professional", "detail-oriented"}

// Corrector applies corrective actions to drifting personas. Every
// correction commits in a single transaction: the persona mutation, the
// ledger observation where one is written, and the audit record.
type Corrector struct {
	store    *data.Store
	personas *persona.SQLiteStore
	ledger   *mood.SQLiteLedger
	log      *CorrectionLog
	now      func() time.Time
}

// NewCorrector wires a corrector over the shared database.
func NewCorrector(store *data.Store, personas *persona.SQLiteStore, ledger *mood.SQLiteLedger) *Corrector {
	return &Corrector{
		store:    store,
		personas: personas,
		ledger:   ledger,
		log:      NewCorrectionLog(store),
		now:      time.Now,
	}
}

// Log exposes the correction audit log.
func (c *Corrector) Log() *CorrectionLog {
	return c.log
}

// Apply runs every applicable corrective action for the persona given
// its drift report, returning the audit records it wrote. No drift, no
// writes: a stable persona comes back with an empty slice.
func (c *Corrector) Apply(ctx context.Context, p *persona.Persona, report *Report) ([]*Correction, error) {
	var applied []*Correction

	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		if corr, err := c.clampMoodTx(ctx, tx, p, report); err != nil {
			return err
		} else if corr != nil {
			applied = append(applied, corr)
		}

		corrs, err := c.reinforceTraitsTx(ctx, tx, p, report)
		if err != nil {
			return err
		}
		applied = append(applied, corrs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, corr := range applied {
		log.Info().
			Str("persona_id", corr.PersonaID).
			Str("type", string(corr.Type)).
			Str("before", corr.Before).
			Str("after", corr.After).
			Int("drift_score", corr.DriftScore).
			Msg("Corrective action applied")
	}
	return applied, nil
}

// clampMoodTx pulls an extreme mood back inside the clamp band when the
// persona has been volatile. The clamp lands as a regular system
// observation so the ledger stays the single history of mood changes.
func (c *Corrector) clampMoodTx(ctx context.Context, tx *sql.Tx, p *persona.Persona, report *Report) (*Correction, error) {
	if report.Volatility <= highVolatility {
		return nil, nil
	}

	clamped := clamp(p.CurrentMood, -moodClampBound, moodClampBound)
	if clamped == p.CurrentMood {
		return nil, nil
	}

	obs := &mood.Observation{
		PersonaID: p.ID,
		Value:     clamped,
		Reason:    correctionReason,
		Trigger: mood.Trigger{
			Type:    mood.TriggerSystem,
			Source:  "drift-corrector",
			Details: fmt.Sprintf("volatility %.1f exceeded %.0f", report.Volatility, highVolatility),
		},
	}
	if err := c.ledger.AppendTx(ctx, tx, obs); err != nil {
		return nil, fmt.Errorf("append clamp observation: %w", err)
	}

	corr := &Correction{
		PersonaID:  p.ID,
		Type:       CorrectionMoodClamp,
		Before:     strconv.Itoa(p.CurrentMood),
		After:      strconv.Itoa(clamped),
		Reason:     correctionReason,
		DriftScore: report.Score,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.log.InsertTx(ctx, tx, corr); err != nil {
		return nil, err
	}

	p.CurrentMood = clamped
	return corr, nil
}

// reinforceTraitsTx tops a thin trait set up to the minimum using the
// defaults, skipping any the persona already has. Each added trait gets
// its own audit record.
func (c *Corrector) reinforceTraitsTx(ctx context.Context, tx *sql.Tx, p *persona.Persona, report *Report) ([]*Correction, error) {
	if len(p.Traits) >= minTraits {
		return nil, nil
	}

	traits := append([]string(nil), p.Traits...)
	var corrs []*Correction
	for _, t := range defaultTraits {
		if len(traits) >= minTraits {
			break
		}
		if hasTrait(traits, t) {
			continue
		}

		before := strings.Join(traits, ",")
		traits = append(traits, t)
		corrs = append(corrs, &Correction{
			PersonaID:  p.ID,
			Type:       CorrectionTraitReinforce,
			Before:     before,
			After:      strings.Join(traits, ","),
			Added:      t,
			Reason:     "trait set below minimum depth",
			DriftScore: report.Score,
			CreatedAt:  c.now().UTC(),
		})
	}
	if len(corrs) == 0 {
		return nil, nil
	}

	if err := c.personas.UpdateTraitsTx(ctx, tx, p.ID, traits); err != nil {
		return nil, fmt.Errorf("reinforce traits: %w", err)
	}
	for _, corr := range corrs {
		if err := c.log.InsertTx(ctx, tx, corr); err != nil {
			return nil, err
		}
	}

	p.Traits = traits
	return corrs, nil
}

func hasTrait(traits []string, want string) bool {
	for _, t := range traits {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
