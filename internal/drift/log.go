package drift

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/praxislabs/praxis/internal/data"
)

// CorrectionType names what a correction changed.
type CorrectionType string

const (
	// CorrectionMoodClamp pulled an extreme current mood back toward
	// neutral.
	CorrectionMoodClamp CorrectionType = "mood_clamp"
	// CorrectionTraitReinforce topped up a thin trait set.
	CorrectionTraitReinforce CorrectionType = "trait_reinforce"
)

// Correction is the audit record of one corrective action. Before/After
// hold the changed value as text; Added lists appended traits.
type Correction struct {
	ID         string         `json:"id"`
	PersonaID  string         `json:"personaId"`
	Type       CorrectionType `json:"type"`
	Before     string         `json:"before,omitempty"`
	After      string         `json:"after,omitempty"`
	Added      string         `json:"added,omitempty"`
	Reason     string         `json:"reason"`
	DriftScore int            `json:"driftScore"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// CorrectionLog persists correction records. Inserts happen inside the
// corrector's transaction so an audit row never exists without its
// persona mutation, nor the reverse.
type CorrectionLog struct {
	store *data.Store
}

// NewCorrectionLog returns a log backed by the given store.
func NewCorrectionLog(store *data.Store) *CorrectionLog {
	return &CorrectionLog{store: store}
}

// InsertTx writes one correction inside a caller-owned transaction,
// assigning its ID and timestamp.
func (g *CorrectionLog) InsertTx(ctx context.Context, tx *sql.Tx, c *Correction) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO corrections (
			id, persona_id, correction_type, before_value, after_value,
			added, reason, drift_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PersonaID, string(c.Type), c.Before, c.After,
		c.Added, c.Reason, c.DriftScore, c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

// List returns a persona's corrections, newest first.
func (g *CorrectionLog) List(ctx context.Context, personaID string, limit int) ([]*Correction, error) {
	query := `
		SELECT id, persona_id, correction_type, before_value, after_value,
		       added, reason, drift_score, created_at
		FROM corrections WHERE persona_id = ?
		ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := g.store.DB().QueryContext(ctx, query, personaID)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var out []*Correction
	for rows.Next() {
		var (
			c         Correction
			ctype     string
			createdAt int64
		)
		if err := rows.Scan(
			&c.ID, &c.PersonaID, &ctype, &c.Before, &c.After,
			&c.Added, &c.Reason, &c.DriftScore, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		c.Type = CorrectionType(ctype)
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return out, nil
}
