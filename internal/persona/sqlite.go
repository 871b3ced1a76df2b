package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/praxis/internal/data"
)

// SQLiteStore is the production Store, backed by the shared Praxis
// database.
type SQLiteStore struct {
	store *data.Store
	now   func() time.Time
}

// NewSQLiteStore returns a persona store backed by the given database.
func NewSQLiteStore(store *data.Store) *SQLiteStore {
	return &SQLiteStore{store: store, now: time.Now}
}

// Create inserts a new persona, assigning a UUID when the definition has
// no ID of its own.
func (s *SQLiteStore) Create(ctx context.Context, p *Persona) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return err
	}

	now := s.now()
	p.CreatedAt = now.UTC()
	p.UpdatedAt = now.UTC()

	traitsJSON, valuesJSON, err := marshalLists(p)
	if err != nil {
		return err
	}

	// INSERT OR IGNORE keeps duplicate detection driver-independent.
	res, err := s.store.DB().ExecContext(ctx, `
		INSERT OR IGNORE INTO personas (
			id, name, role, background, traits, values_json,
			communication_style, decision_making, verbosity,
			current_mood, baseline_mood, is_builtin, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Role, p.Background, traitsJSON, valuesJSON,
		p.Style.Communication, p.Style.DecisionMaking, p.Style.Verbosity,
		p.CurrentMood, p.BaselineMood, boolToInt(p.IsBuiltIn),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert persona: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrExists, p.ID)
	}
	return nil
}

const personaColumns = `
	id, name, role, background, traits, values_json,
	communication_style, decision_making, verbosity,
	current_mood, baseline_mood, is_builtin, created_at, updated_at`

// Get returns the persona with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Persona, error) {
	row := s.store.DB().QueryRowContext(ctx,
		`SELECT`+personaColumns+` FROM personas WHERE id = ?`, id)

	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

// List returns every persona, built-ins first, then by name.
func (s *SQLiteStore) List(ctx context.Context) ([]*Persona, error) {
	rows, err := s.store.DB().QueryContext(ctx,
		`SELECT`+personaColumns+` FROM personas ORDER BY is_builtin DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var out []*Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personas: %w", err)
	}
	return out, nil
}

// Update rewrites the definitional fields. Current mood is deliberately
// not part of the statement; the mood ledger owns it.
func (s *SQLiteStore) Update(ctx context.Context, p *Persona) error {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("%w: %s", ErrBuiltIn, p.ID)
	}

	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return err
	}

	now := s.now()
	p.UpdatedAt = now.UTC()

	traitsJSON, valuesJSON, err := marshalLists(p)
	if err != nil {
		return err
	}

	_, err = s.store.DB().ExecContext(ctx, `
		UPDATE personas SET
			name = ?, role = ?, background = ?, traits = ?, values_json = ?,
			communication_style = ?, decision_making = ?, verbosity = ?,
			baseline_mood = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Role, p.Background, traitsJSON, valuesJSON,
		p.Style.Communication, p.Style.DecisionMaking, p.Style.Verbosity,
		p.BaselineMood, now.Unix(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update persona: %w", err)
	}
	return nil
}

// Delete removes a persona and, via cascade, its mood history. Built-ins
// cannot be deleted.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("%w: %s", ErrBuiltIn, id)
	}

	if _, err := s.store.DB().ExecContext(ctx,
		`DELETE FROM personas WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	return nil
}

// UpdateTraitsTx rewrites a persona's traits inside an existing
// transaction. The drift corrector uses it so trait corrections commit
// together with their audit record; it intentionally skips the built-in
// guard, since corrections apply to built-ins too.
func (s *SQLiteStore) UpdateTraitsTx(ctx context.Context, tx *sql.Tx, id string, traits []string) error {
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE personas SET traits = ?, updated_at = ? WHERE id = ?`,
		string(traitsJSON), s.now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update traits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func marshalLists(p *Persona) (traitsJSON, valuesJSON string, err error) {
	t, err := json.Marshal(emptyIfNil(p.Traits))
	if err != nil {
		return "", "", fmt.Errorf("marshal traits: %w", err)
	}
	v, err := json.Marshal(emptyIfNil(p.Values))
	if err != nil {
		return "", "", fmt.Errorf("marshal values: %w", err)
	}
	return string(t), string(v), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPersona(row scanner) (*Persona, error) {
	var (
		p          Persona
		traitsJSON string
		valuesJSON string
		isBuiltIn  int
		createdAt  int64
		updatedAt  int64
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.Role, &p.Background, &traitsJSON, &valuesJSON,
		&p.Style.Communication, &p.Style.DecisionMaking, &p.Style.Verbosity,
		&p.CurrentMood, &p.BaselineMood, &isBuiltIn, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(traitsJSON), &p.Traits); err != nil {
		return nil, fmt.Errorf("unmarshal traits: %w", err)
	}
	if err := json.Unmarshal([]byte(valuesJSON), &p.Values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}

	p.IsBuiltIn = isBuiltIn != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
