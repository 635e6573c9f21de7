// Package preset persists named snapshots of a Form's flat scalar
// parameters to a SQL-backed store, so a patch's knob settings survive
// past one process. A preset only captures scalar slots (real, string,
// symbol) — a lazily-generated signal isn't something a snapshot can
// serialize, so list- and form-valued keys are skipped rather than
// erroring, matching the "patch a few knobs, not the whole graph" use
// a preset is for.
package preset

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"strand/internal/form"
	"strand/internal/symbols"
	"strand/internal/value"
)

// Store manages one database connection holding the preset schema, the
// single active connection a render session talks to at a time.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// driverNames maps the public "type" strings this store accepts to the
// database/sql driver name registered by each blank import above.
var driverNames = map[string]string{
	"sqlite":    "sqlite",
	"sqlite3":   "sqlite3",
	"postgres":  "postgres",
	"mysql":     "mysql",
	"sqlserver": "sqlserver",
}

// Open connects to dsn using dbType ("sqlite", "postgres", "mysql", or
// "sqlserver") and ensures the preset table exists.
func Open(dbType, dsn string) (*Store, error) {
	driver, ok := driverNames[dbType]
	if !ok {
		return nil, fmt.Errorf("preset: unsupported database type %q", dbType)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("preset: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preset: ping: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS preset_params (
			preset_name TEXT NOT NULL,
			param_key   TEXT NOT NULL,
			kind        TEXT NOT NULL,
			value       TEXT NOT NULL,
			saved_at    TIMESTAMP NOT NULL,
			PRIMARY KEY (preset_name, param_key)
		)`)
	if err != nil {
		return fmt.Errorf("preset: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save flattens every scalar key across f's linearized Tables (earliest
// table wins on key collision, the same precedence form.Get already
// implements) and upserts it under name.
func (s *Store) Save(name string, f *form.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := flatten(f)
	if len(params) == 0 {
		return fmt.Errorf("preset: %q has no scalar parameters to save", name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("preset: begin: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM preset_params WHERE preset_name = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("preset: clear: %w", err)
	}
	now := time.Now()
	for _, p := range params {
		if _, err := tx.Exec(
			`INSERT INTO preset_params (preset_name, param_key, kind, value, saved_at) VALUES (?, ?, ?, ?, ?)`,
			name, p.key, p.kind, p.text, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("preset: insert %s.%s: %w", name, p.key, err)
		}
	}
	return tx.Commit()
}

// Load rebuilds a single-table Form from a saved preset.
func (s *Store) Load(name string) (*form.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT param_key, kind, value FROM preset_params WHERE preset_name = ? ORDER BY param_key`, name)
	if err != nil {
		return nil, fmt.Errorf("preset: query: %w", err)
	}
	defer rows.Close()

	var keys []string
	var vals []value.V
	for rows.Next() {
		var key, kind, text string
		if err := rows.Scan(&key, &kind, &text); err != nil {
			return nil, fmt.Errorf("preset: scan: %w", err)
		}
		v, err := decode(kind, text)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("preset: %q not found", name)
	}

	return form.Single(form.NewTable(keys, vals)), nil
}

// List returns the names of every preset in the store, newest first.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT preset_name FROM preset_params GROUP BY preset_name ORDER BY MAX(saved_at) DESC, preset_name`)
	if err != nil {
		// If a backend rejects the ordered query, fall back to a plain
		// name-ordered list rather than failing the call.
		rows, err = s.db.Query(`SELECT DISTINCT preset_name FROM preset_params ORDER BY preset_name`)
		if err != nil {
			return nil, fmt.Errorf("preset: list: %w", err)
		}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM preset_params WHERE preset_name = ?`, name)
	if err != nil {
		return fmt.Errorf("preset: delete: %w", err)
	}
	return nil
}

type param struct {
	key  string
	kind string
	text string
}

// flatten walks every Table of f outermost-first, keeping only the
// first value seen per key (form.Get's own chasing rule) and encoding
// scalars; list/form-valued slots are silently skipped.
func flatten(f *form.Form) []param {
	seen := map[string]bool{}
	var out []param
	for _, t := range f.Tables() {
		for i, k := range t.Map.Keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			v := t.Values[i]
			kind, text, ok := encode(v)
			if !ok {
				continue
			}
			out = append(out, param{key: k, kind: kind, text: text})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func encode(v value.V) (kind, text string, ok bool) {
	switch {
	case v.IsReal():
		return "real", fmt.Sprintf("%.17g", v.AsReal()), true
	case v.Kind() == value.KindString:
		if s, ok := v.Ref().(*value.String); ok {
			return "string", s.Text, true
		}
	case v.Kind() == value.KindSymbol:
		if s, ok := v.Ref().(*value.Symbol); ok {
			return "symbol", s.Name, true
		}
	}
	return "", "", false
}

func decode(kind, text string) (value.V, error) {
	switch kind {
	case "real":
		var f float64
		if _, err := fmt.Sscanf(text, "%g", &f); err != nil {
			return value.V{}, fmt.Errorf("preset: bad real %q: %w", text, err)
		}
		return value.Real(f), nil
	case "string":
		return value.FromRef(value.KindString, &value.String{Text: text}), nil
	case "symbol":
		return value.FromRef(value.KindSymbol, symbols.Intern(text)), nil
	default:
		return value.V{}, fmt.Errorf("preset: unknown stored kind %q", kind)
	}
}
