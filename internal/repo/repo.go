package repo

import (
	"context"
	"errors"

	"github.com/ITNORWA/SMS-APP/internal/model"
)

var ErrNotFound = errors.New("record not found")

// LogRepository stores delivery outcomes. Rows are insert-only; a resend
// adds new rows instead of updating the old ones.
type LogRepository interface {
	InsertBatch(ctx context.Context, records []model.LogRecord) error
	// LatestStatusByRecipient returns, per distinct recipient number, the
	// status of the most recent log row for the given backlink.
	LatestStatusByRecipient(ctx context.Context, refDocType, refName string) (map[string]model.Status, error)
	List(ctx context.Context, limit, offset int) ([]model.LogRecord, error)
}

type BroadcastRepository interface {
	Get(ctx context.Context, id int64) (model.Broadcast, error)
	Create(ctx context.Context, b model.Broadcast) (int64, error)
	UpdateAfterSend(ctx context.Context, b model.Broadcast) error
}

type TemplateRepository interface {
	Get(ctx context.Context, name string) (model.Template, error)
	Upsert(ctx context.Context, t model.Template) error
	List(ctx context.Context) ([]model.Template, error)
}

type RuleRepository interface {
	ListEnabled(ctx context.Context, documentType string) ([]model.Rule, error)
	Create(ctx context.Context, r model.Rule) (int64, error)
}
