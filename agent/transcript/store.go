// Package transcript persists every thread message to a local append-only
// audit table. The table is insert-only; nothing in the module updates or
// deletes rows once written.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

var ErrEmptyEntry = errors.New("transcript entry has no content")

type Config struct {
	Path string `envconfig:"PATH" split_words:"true" default:"transcripts.db"`
}

type transcriptRow struct {
	bun.BaseModel `bun:"table:transcript_entries"`

	ID       int64     `bun:"id,pk,autoincrement"`
	ThreadID string    `bun:"thread_id,notnull"`
	RunID    string    `bun:"run_id"`
	Role     string    `bun:"role,notnull"`
	AgentID  string    `bun:"agent_id"`
	Content  string    `bun:"content,notnull"`
	At       time.Time `bun:"at,notnull"`
}

// Store is a bun-backed TranscriptSink over an embedded sqlite file.
type Store struct {
	db *bun.DB
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("transcript db path is required")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().
		Model((*transcriptRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create transcript table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, entry contractx.TranscriptEntry) error {
	if strings.TrimSpace(entry.Content) == "" {
		return ErrEmptyEntry
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	row := &transcriptRow{
		ThreadID: entry.ThreadID,
		RunID:    entry.RunID,
		Role:     entry.Role,
		AgentID:  entry.AgentID,
		Content:  entry.Content,
		At:       at.UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

// ByThread returns a thread's messages in insertion order.
func (s *Store) ByThread(ctx context.Context, threadID string) ([]contractx.TranscriptEntry, error) {
	var rows []transcriptRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("load transcript for thread=%s: %w", threadID, err)
	}

	entries := make([]contractx.TranscriptEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, contractx.TranscriptEntry{
			ThreadID: r.ThreadID,
			RunID:    r.RunID,
			Role:     r.Role,
			AgentID:  r.AgentID,
			Content:  r.Content,
			At:       r.At,
		})
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
