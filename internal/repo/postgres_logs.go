package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/ITNORWA/SMS-APP/internal/model"
)

type PostgresLogRepo struct {
	db *sql.DB
}

func NewPostgresLogRepo(db *sql.DB) *PostgresLogRepo {
	return &PostgresLogRepo{db: db}
}

// InsertBatch writes all rows in one transaction so a caller re-reading
// immediately after return sees the whole batch.
func (r *PostgresLogRepo) InsertBatch(ctx context.Context, records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sms_logs
				(mobile_number, message_content, status, api_response,
				 reference_doctype, reference_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			rec.MobileNumber,
			rec.Message,
			string(rec.Status),
			rec.APIResponse,
			nullString(rec.RefDocType),
			nullString(rec.RefName),
			createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresLogRepo) LatestStatusByRecipient(ctx context.Context, refDocType, refName string) (map[string]model.Status, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mobile_number, status
		FROM sms_logs
		WHERE reference_doctype = $1 AND reference_name = $2
		ORDER BY created_at ASC, id ASC
	`, refDocType, refName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Rows come out oldest first; later rows overwrite earlier ones so
	// the map ends up holding the latest status per recipient.
	latest := make(map[string]model.Status)
	for rows.Next() {
		var mobile, status string
		if err := rows.Scan(&mobile, &status); err != nil {
			return nil, err
		}
		if mobile == "" {
			continue
		}
		latest[mobile] = model.Status(status)
	}
	return latest, rows.Err()
}

func (r *PostgresLogRepo) List(ctx context.Context, limit, offset int) ([]model.LogRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mobile_number, message_content, status, api_response,
		       reference_doctype, reference_name, created_at
		FROM sms_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LogRecord
	for rows.Next() {
		var rec model.LogRecord
		var status string
		var refDT, refName sql.NullString

		if err := rows.Scan(
			&rec.ID,
			&rec.MobileNumber,
			&rec.Message,
			&status,
			&rec.APIResponse,
			&refDT,
			&refName,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		rec.Status = model.Status(status)
		rec.RefDocType = refDT.String
		rec.RefName = refName.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
