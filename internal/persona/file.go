package persona

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a persona definition from a YAML file. Definitions with
// no explicit ID get one derived from the name, so re-importing the same
// file updates rather than duplicates.
func LoadFile(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", filepath.Base(path), err)
	}

	if p.ID == "" {
		p.ID = Slug(p.Name)
	}
	applyDefaults(&p)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("persona file %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// SaveFile writes the persona's definition to path. Runtime state is
// excluded by the YAML tags, so exported files are clean import sources.
func SaveFile(path string, p *Persona) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create persona directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write persona file: %w", err)
	}
	return nil
}

// LoadDir loads every persona definition in dir, sorted by file name. A
// missing directory is not an error; a malformed file is.
func LoadDir(dir string) ([]*Persona, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read persona directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isPersonaFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	out := make([]*Persona, 0, len(paths))
	for _, path := range paths {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ImportFile loads one definition and upserts it into the store,
// reporting whether it was created rather than updated. Built-in
// personas cannot be overwritten from files.
func ImportFile(ctx context.Context, store Store, path string) (*Persona, bool, error) {
	p, err := LoadFile(path)
	if err != nil {
		return nil, false, err
	}
	return importLoaded(ctx, store, p)
}

// ImportDir imports every definition in dir, returning how many personas
// it created and updated.
func ImportDir(ctx context.Context, store Store, dir string) (created, updated int, err error) {
	personas, err := LoadDir(dir)
	if err != nil {
		return 0, 0, err
	}

	for _, p := range personas {
		_, wasCreated, err := importLoaded(ctx, store, p)
		if err != nil {
			return created, updated, err
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

func importLoaded(ctx context.Context, store Store, p *Persona) (*Persona, bool, error) {
	_, err := store.Get(ctx, p.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := store.Create(ctx, p); err != nil {
			return nil, false, err
		}
		return p, true, nil
	case err != nil:
		return nil, false, err
	default:
		if err := store.Update(ctx, p); err != nil {
			return nil, false, err
		}
		return p, false, nil
	}
}

// Slug derives a stable ID from a display name: lowercase, words joined
// by hyphens, everything else dropped.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func isPersonaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
