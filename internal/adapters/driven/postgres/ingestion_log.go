package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IngestionLog = (*IngestionLog)(nil)

// DefaultHistoryLimit caps ListByDocument when no limit is given
const DefaultHistoryLimit = 50

// IngestionLog implements driven.IngestionLog using PostgreSQL
type IngestionLog struct {
	db *DB
}

// NewIngestionLog creates a new IngestionLog
func NewIngestionLog(db *DB) *IngestionLog {
	return &IngestionLog{db: db}
}

// Record appends one ingestion attempt. ID and CreatedAt are filled when empty.
func (l *IngestionLog) Record(ctx context.Context, rec *domain.IngestionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	chunkIDs := rec.ChunkIDs
	if chunkIDs == nil {
		chunkIDs = []string{}
	}

	query := `
		INSERT INTO ingestions (id, document_id, record_id, title, team_id, organization_id,
		                        source, chunk_ids, status, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := l.db.ExecContext(ctx, query,
		rec.ID,
		rec.DocumentID,
		rec.RecordID,
		rec.Title,
		rec.Scope.TeamID,
		rec.Scope.OrganizationID,
		rec.Source,
		pq.Array(chunkIDs),
		string(rec.Status),
		NullString(rec.Error),
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion: %w", err)
	}
	return nil
}

// ListByDocument returns the most recent attempts for a document, newest first
func (l *IngestionLog) ListByDocument(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT id, document_id, record_id, title, team_id, organization_id,
		       source, chunk_ids, status, error, duration_ms, created_at
		FROM ingestions
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := l.db.QueryContext(ctx, query, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	defer rows.Close()

	var records []*domain.IngestionRecord
	for rows.Next() {
		rec, err := scanIngestion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ping checks if the database is reachable
func (l *IngestionLog) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIngestion(row scanner) (*domain.IngestionRecord, error) {
	var rec domain.IngestionRecord
	var status string
	var errMsg sql.NullString
	var chunkIDs []string

	err := row.Scan(
		&rec.ID,
		&rec.DocumentID,
		&rec.RecordID,
		&rec.Title,
		&rec.Scope.TeamID,
		&rec.Scope.OrganizationID,
		&rec.Source,
		pq.Array(&chunkIDs),
		&status,
		&errMsg,
		&rec.DurationMs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan ingestion: %w", err)
	}

	rec.Status = domain.IngestionStatus(status)
	rec.Error = errMsg.String
	rec.ChunkIDs = chunkIDs
	return &rec, nil
}
