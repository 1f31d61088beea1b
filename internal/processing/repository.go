package processing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResultRecord is one persisted processing run.
type ResultRecord struct {
	ID             uuid.UUID        `json:"id"`
	Source         string           `json:"source"` // "url" or "upload"
	Summary        string           `json:"summary"`
	Result         ProcessingResult `json:"result"`
	ProcessingTime *float64         `json:"processing_time"`
	CreatedAt      time.Time        `json:"created_at"`
}

func NewResultRecord(source string, result ProcessingResult) ResultRecord {
	return ResultRecord{
		ID:             uuid.New(),
		Source:         source,
		Summary:        result.Summary,
		Result:         result,
		ProcessingTime: result.ProcessingTime,
		CreatedAt:      time.Now(),
	}
}

type Repository interface {
	Save(ctx context.Context, record *ResultRecord) error
	ListRecent(ctx context.Context, limit int) ([]ResultRecord, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Save(ctx context.Context, record *ResultRecord) error {
	payload, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result payload: %w", err)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO processing_results (id, source, summary, payload, processing_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.Source, record.Summary, payload, record.ProcessingTime, record.CreatedAt)
	return err
}

func (r *postgresRepo) ListRecent(ctx context.Context, limit int) ([]ResultRecord, error) {
	query := `
		SELECT id, source, summary, payload, processing_time, created_at
		FROM processing_results
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ResultRecord, 0, limit)
	for rows.Next() {
		var rec ResultRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Summary, &payload, &rec.ProcessingTime, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result payload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
