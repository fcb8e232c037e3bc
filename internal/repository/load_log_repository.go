package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/chargemap/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type loadLogRepository struct {
	pool *pgxpool.Pool
}

// NewLoadLogRepository wires a repository backed by pgxpool.
func NewLoadLogRepository(pool *pgxpool.Pool) LoadLogRepository {
	return &loadLogRepository{pool: pool}
}

func (r *loadLogRepository) Record(ctx context.Context, entry domain.LoadLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("load log repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO load_logs (id, source, file_name, row_count, column_count, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		string(entry.Source),
		entry.FileName,
		entry.Rows,
		entry.Columns,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record load log: %w", err)
	}

	return nil
}

func (r *loadLogRepository) List(ctx context.Context, limit int, offset int) ([]domain.LoadLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("load log repository not initialized")
	}

	limit, offset = clampPage(limit, offset)

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, source, file_name, row_count, column_count, error_message, created_at
		 FROM load_logs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list load logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.LoadLogEntry{}
	for rows.Next() {
		var (
			entry     domain.LoadLogEntry
			source    string
			errorText pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&source,
			&entry.FileName,
			&entry.Rows,
			&entry.Columns,
			&errorText,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan load log: %w", scanErr)
		}

		entry.Source = domain.LoadSource(source)
		if errorText.Valid {
			msg := errorText.String
			entry.ErrorMessage = &msg
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate load logs: %w", rowsErr)
	}

	return logs, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
