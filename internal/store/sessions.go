package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursedash/internal/export"
)

// ErrNotFound is returned when no saved session matches.
var ErrNotFound = errors.New("not found")

// SessionInfo describes a saved session without its document.
type SessionInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FileName    string    `json:"file_name"`
	Entries     int       `json:"entries"`
	Modules     int       `json:"modules"`
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sessions is the saved-sessions library.
type Sessions struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessions creates a library over an opened database.
func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db, now: time.Now}
}

// Save stores doc under name. Saving an existing name replaces its
// document and keeps its id.
func (s *Sessions) Save(ctx context.Context, name string, doc *export.Document) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("session name is empty")
	}
	var buf bytes.Buffer
	if err := export.WriteSession(&buf, doc); err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	query := `INSERT INTO saved_sessions
		(id, name, file_name, entry_count, module_count, period_start, period_end, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			file_name = excluded.file_name,
			entry_count = excluded.entry_count,
			module_count = excluded.module_count,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			document = excluded.document,
			updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		name,
		doc.FileName,
		len(doc.Entries),
		len(doc.AvailableModules),
		doc.DefaultStartDate,
		doc.DefaultEndDate,
		buf.String(),
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM saved_sessions WHERE name = ?`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("reading session id: %w", err)
	}
	return id, nil
}

// List returns every saved session, most recently updated first.
func (s *Sessions) List(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, file_name, entry_count, module_count, period_start, period_end, created_at, updated_at
		FROM saved_sessions ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	out := make([]SessionInfo, 0)
	for rows.Next() {
		var info SessionInfo
		var created, updated string
		if err := rows.Scan(&info.ID, &info.Name, &info.FileName, &info.Entries, &info.Modules,
			&info.PeriodStart, &info.PeriodEnd, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, created)
		info.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Get loads a saved session by id or by name.
func (s *Sessions) Get(ctx context.Context, idOrName string) (*export.Document, error) {
	var name, body string
	err := s.db.QueryRowContext(ctx, `SELECT name, document FROM saved_sessions WHERE id = ? OR name = ?`,
		idOrName, idOrName).Scan(&name, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %q: %w", idOrName, ErrNotFound)
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return export.ReadSession(strings.NewReader(body), name+".json")
}

// Delete removes a saved session by id or by name.
func (s *Sessions) Delete(ctx context.Context, idOrName string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_sessions WHERE id = ? OR name = ?`, idOrName, idOrName)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", idOrName, ErrNotFound)
	}
	return nil
}
