package mood

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/data"
)

// SQLiteLedger persists observations in the shared Praxis database. The
// append path updates the owning persona's denormalized current_mood in
// the same transaction, so readers of the personas table never see a mood
// that disagrees with the ledger.
type SQLiteLedger struct {
	store *data.Store
	now   func() time.Time
}

// NewSQLiteLedger returns a ledger backed by the given store.
func NewSQLiteLedger(store *data.Store) *SQLiteLedger {
	return NewSQLiteLedgerWithClock(store, time.Now)
}

// NewSQLiteLedgerWithClock is NewSQLiteLedger with an injectable time
// source for expiry tests.
func NewSQLiteLedgerWithClock(store *data.Store, now func() time.Time) *SQLiteLedger {
	return &SQLiteLedger{store: store, now: now}
}

// Append validates and writes the observation and the persona's current
// mood atomically. ErrPersonaNotFound means nothing was written.
func (l *SQLiteLedger) Append(ctx context.Context, obs *Observation) error {
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		return l.AppendTx(ctx, tx, obs)
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("persona_id", obs.PersonaID).
		Str("observation_id", obs.ID).
		Int("value", obs.Value).
		Str("trigger", string(obs.Trigger.Type)).
		Msg("Mood observation appended")

	return nil
}

// AppendTx is Append inside a caller-owned transaction. The drift
// corrector uses it to commit a correction observation together with the
// correction's audit record.
func (l *SQLiteLedger) AppendTx(ctx context.Context, tx *sql.Tx, obs *Observation) error {
	prepare(obs, l.now())
	if err := obs.Validate(); err != nil {
		return err
	}

	tagsJSON, err := json.Marshal(obs.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE personas SET current_mood = ?, updated_at = ? WHERE id = ?`,
		obs.Value, obs.CreatedAt.Unix(), obs.PersonaID,
	)
	if err != nil {
		return fmt.Errorf("update persona mood: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, obs.PersonaID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mood_observations (
			id, persona_id, value, reason,
			trigger_type, trigger_source, trigger_details,
			conversation_id, user_id, project_id, milestone_id,
			expected_minutes, actual_minutes, intensity, tags,
			is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.ID, obs.PersonaID, obs.Value, obs.Reason,
		string(obs.Trigger.Type), obs.Trigger.Source, obs.Trigger.Details,
		obs.Context.ConversationID, obs.Context.UserID, obs.Context.ProjectID, obs.Context.MilestoneID,
		obs.ExpectedMinutes, obs.ActualMinutes, string(obs.Intensity), string(tagsJSON),
		boolToInt(obs.IsActive), obs.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

const observationColumns = `
	id, persona_id, value, reason,
	trigger_type, trigger_source, trigger_details,
	conversation_id, user_id, project_id, milestone_id,
	expected_minutes, actual_minutes, intensity, tags,
	is_active, created_at`

// Get returns the observation with the given ID.
func (l *SQLiteLedger) Get(ctx context.Context, id string) (*Observation, error) {
	row := l.store.DB().QueryRowContext(ctx,
		`SELECT`+observationColumns+` FROM mood_observations WHERE id = ?`, id)

	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get observation: %w", err)
	}
	return obs, nil
}

// Query returns matching observations in creation order, oldest first.
func (l *SQLiteLedger) Query(ctx context.Context, q Query) ([]*Observation, error) {
	var (
		where = []string{"persona_id = ?"}
		args  = []any{q.PersonaID}
	)
	if q.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.Unix())
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.Until.Unix())
	}

	query := `SELECT` + observationColumns +
		` FROM mood_observations WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at ASC, id ASC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := l.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// Retire soft-retires one observation, recording how long the mood
// actually held. Retiring an already-retired observation is a no-op.
func (l *SQLiteLedger) Retire(ctx context.Context, id string) error {
	return l.store.WithTx(ctx, func(tx *sql.Tx) error {
		var createdAt int64
		var active bool
		err := tx.QueryRowContext(ctx,
			`SELECT created_at, is_active FROM mood_observations WHERE id = ?`, id,
		).Scan(&createdAt, &active)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load observation: %w", err)
		}
		if !active {
			return nil
		}

		actual := elapsedMinutes(time.Unix(createdAt, 0), l.now())
		if _, err := tx.ExecContext(ctx,
			`UPDATE mood_observations SET is_active = 0, actual_minutes = ? WHERE id = ?`,
			actual, id,
		); err != nil {
			return fmt.Errorf("retire observation: %w", err)
		}
		return nil
	})
}

// RetireExpired deactivates every active observation whose expected
// duration has elapsed at now, returning how many it touched.
func (l *SQLiteLedger) RetireExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE mood_observations
		 SET is_active = 0, actual_minutes = expected_minutes
		 WHERE is_active = 1 AND (created_at + expected_minutes * 60) < ?`,
		now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("retire expired observations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if affected > 0 {
		log.Info().Int64("count", affected).Msg("Retired expired mood observations")
	}
	return int(affected), nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (*Observation, error) {
	var (
		obs         Observation
		triggerType string
		intensity   string
		tagsJSON    string
		isActive    int
		createdAt   int64
	)

	err := row.Scan(
		&obs.ID, &obs.PersonaID, &obs.Value, &obs.Reason,
		&triggerType, &obs.Trigger.Source, &obs.Trigger.Details,
		&obs.Context.ConversationID, &obs.Context.UserID, &obs.Context.ProjectID, &obs.Context.MilestoneID,
		&obs.ExpectedMinutes, &obs.ActualMinutes, &intensity, &tagsJSON,
		&isActive, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	obs.Trigger.Type = TriggerType(triggerType)
	obs.Intensity = Intensity(intensity)
	obs.IsActive = isActive != 0
	obs.CreatedAt = time.Unix(createdAt, 0).UTC()

	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &obs.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	return &obs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
