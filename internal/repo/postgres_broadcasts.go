package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ITNORWA/SMS-APP/internal/model"
)

type PostgresBroadcastRepo struct {
	db *sql.DB
}

func NewPostgresBroadcastRepo(db *sql.DB) *PostgresBroadcastRepo {
	return &PostgresBroadcastRepo{db: db}
}

func (r *PostgresBroadcastRepo) Get(ctx context.Context, id int64) (model.Broadcast, error) {
	var b model.Broadcast
	var status string
	var templateName, templateValues, recipientInput, messageType sql.NullString
	var dlrURL, messageID, rendered, lastResponse sql.NullString
	var sentOn sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, message, template_name, template_values, recipient_input,
		       message_type, dlr_url, message_id, rendered_message,
		       last_response, sent_on, total_recipients, sent_recipients,
		       failed_recipients, status
		FROM sms_broadcasts
		WHERE id = $1
	`, id).Scan(
		&b.ID,
		&b.Message,
		&templateName,
		&templateValues,
		&recipientInput,
		&messageType,
		&dlrURL,
		&messageID,
		&rendered,
		&lastResponse,
		&sentOn,
		&b.Total,
		&b.Sent,
		&b.Failed,
		&status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Broadcast{}, ErrNotFound
	}
	if err != nil {
		return model.Broadcast{}, err
	}

	b.TemplateName = templateName.String
	b.TemplateValues = templateValues.String
	b.RecipientInput = recipientInput.String
	b.MessageType = model.MessageType(messageType.String)
	b.DLRURL = dlrURL.String
	b.MessageID = messageID.String
	b.RenderedMessage = rendered.String
	b.LastResponse = lastResponse.String
	if sentOn.Valid {
		t := sentOn.Time
		b.SentOn = &t
	}
	b.Status = model.Status(status)
	return b, nil
}

func (r *PostgresBroadcastRepo) Create(ctx context.Context, b model.Broadcast) (int64, error) {
	status := b.Status
	if status == "" {
		status = model.StatusDraft
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sms_broadcasts
			(message, template_name, template_values, recipient_input,
			 message_type, dlr_url, message_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		b.Message,
		nullString(b.TemplateName),
		nullString(b.TemplateValues),
		nullString(b.RecipientInput),
		nullString(string(b.MessageType)),
		nullString(b.DLRURL),
		nullString(b.MessageID),
		string(status),
	).Scan(&id)
	return id, err
}

func (r *PostgresBroadcastRepo) UpdateAfterSend(ctx context.Context, b model.Broadcast) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sms_broadcasts
		SET message_id = $2,
		    rendered_message = $3,
		    last_response = $4,
		    sent_on = $5,
		    total_recipients = $6,
		    sent_recipients = $7,
		    failed_recipients = $8,
		    status = $9
		WHERE id = $1
	`,
		b.ID,
		nullString(b.MessageID),
		nullString(b.RenderedMessage),
		nullString(b.LastResponse),
		b.SentOn,
		b.Total,
		b.Sent,
		b.Failed,
		string(b.Status),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
