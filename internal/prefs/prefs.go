// Package prefs persists the local preferences blob (theme, notification
// toggles, selected AI model) in a small SQLite database.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrUnknownKey is returned by Set for a key that is not a preference.
var ErrUnknownKey = errors.New("unknown preference")

// Theme values.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Notifications toggles which activity raises a notification.
type Notifications struct {
	Messages bool `json:"messages"`
	Tasks    bool `json:"tasks"`
	Mentions bool `json:"mentions"`
}

// Preferences is the whole blob.
type Preferences struct {
	Theme         string        `json:"theme"`
	Notifications Notifications `json:"notifications"`
	AIModel       string        `json:"ai_model,omitempty"`
}

// Defaults returns the preferences used for keys never saved.
func Defaults() Preferences {
	return Preferences{
		Theme:         ThemeSystem,
		Notifications: Notifications{Messages: true, Tasks: true, Mentions: true},
	}
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{"theme", "notifications.messages", "notifications.tasks", "notifications.mentions", "ai_model"}
}

// Store reads and writes preferences.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate preferences: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the saved preferences over the defaults.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	p := Defaults()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Preferences{}, fmt.Errorf("scan preference: %w", err)
		}
		// Rows from a newer client with keys we do not know are skipped.
		_ = p.set(key, value)
	}
	if err := rows.Err(); err != nil {
		return Preferences{}, fmt.Errorf("iterate preferences: %w", err)
	}
	return p, nil
}

// Save writes every key of p.
func (s *Store) Save(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	for _, key := range Keys() {
		value, _ := p.Get(key)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, stamp)
		if err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	return nil
}

// Set updates one key and returns the resulting preferences.
func (s *Store) Set(ctx context.Context, key, value string) (Preferences, error) {
	p, err := s.Load(ctx)
	if err != nil {
		return Preferences{}, err
	}
	if err := p.set(key, value); err != nil {
		return Preferences{}, err
	}
	if err := s.Save(ctx, p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// Validate rejects values the client cannot render.
func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
		return nil
	default:
		return fmt.Errorf("theme %q must be one of system, light, dark", p.Theme)
	}
}

// Get returns the string form of key.
func (p Preferences) Get(key string) (string, bool) {
	switch key {
	case "theme":
		return p.Theme, true
	case "notifications.messages":
		return strconv.FormatBool(p.Notifications.Messages), true
	case "notifications.tasks":
		return strconv.FormatBool(p.Notifications.Tasks), true
	case "notifications.mentions":
		return strconv.FormatBool(p.Notifications.Mentions), true
	case "ai_model":
		return p.AIModel, true
	default:
		return "", false
	}
}

func (p *Preferences) set(key, value string) error {
	switch key {
	case "theme":
		p.Theme = value
		return nil
	case "ai_model":
		p.AIModel = value
		return nil
	}

	var dst *bool
	switch key {
	case "notifications.messages":
		dst = &p.Notifications.Messages
	case "notifications.tasks":
		dst = &p.Notifications.Tasks
	case "notifications.mentions":
		dst = &p.Notifications.Mentions
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	*dst = b
	return nil
}
