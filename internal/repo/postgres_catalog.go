package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ITNORWA/SMS-APP/internal/model"
)

type PostgresTemplateRepo struct {
	db *sql.DB
}

func NewPostgresTemplateRepo(db *sql.DB) *PostgresTemplateRepo {
	return &PostgresTemplateRepo{db: db}
}

func (r *PostgresTemplateRepo) Get(ctx context.Context, name string) (model.Template, error) {
	var t model.Template
	err := r.db.QueryRowContext(ctx, `
		SELECT name, content, active
		FROM sms_templates
		WHERE name = $1
	`, name).Scan(&t.Name, &t.Content, &t.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Template{}, ErrNotFound
	}
	return t, err
}

func (r *PostgresTemplateRepo) Upsert(ctx context.Context, t model.Template) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sms_templates (name, content, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET content = $2, active = $3
	`, t.Name, t.Content, t.Active)
	return err
}

func (r *PostgresTemplateRepo) List(ctx context.Context) ([]model.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, content, active
		FROM sms_templates
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.Name, &t.Content, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type PostgresRuleRepo struct {
	db *sql.DB
}

func NewPostgresRuleRepo(db *sql.DB) *PostgresRuleRepo {
	return &PostgresRuleRepo{db: db}
}

func (r *PostgresRuleRepo) ListEnabled(ctx context.Context, documentType string) ([]model.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_type, trigger_event, value_change_field,
		       condition_field, condition_value, recipient_field,
		       static_numbers, template_name, message_type, dlr_url, enabled
		FROM sms_rules
		WHERE enabled AND document_type = $1
		ORDER BY id ASC
	`, documentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		var rule model.Rule
		var messageType string
		var valueChangeField, conditionField, conditionValue sql.NullString
		var recipientField, staticNumbers, dlrURL sql.NullString

		if err := rows.Scan(
			&rule.ID,
			&rule.DocumentType,
			&rule.TriggerEvent,
			&valueChangeField,
			&conditionField,
			&conditionValue,
			&recipientField,
			&staticNumbers,
			&rule.TemplateName,
			&messageType,
			&dlrURL,
			&rule.Enabled,
		); err != nil {
			return nil, err
		}

		rule.ValueChangeField = valueChangeField.String
		rule.ConditionField = conditionField.String
		rule.ConditionValue = conditionValue.String
		rule.RecipientField = recipientField.String
		rule.StaticNumbers = staticNumbers.String
		rule.MessageType = model.MessageType(messageType)
		rule.DLRURL = dlrURL.String
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *PostgresRuleRepo) Create(ctx context.Context, rule model.Rule) (int64, error) {
	messageType := rule.MessageType
	if messageType == "" {
		messageType = model.Transactional
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sms_rules
			(document_type, trigger_event, value_change_field,
			 condition_field, condition_value, recipient_field,
			 static_numbers, template_name, message_type, dlr_url, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		rule.DocumentType,
		rule.TriggerEvent,
		nullString(rule.ValueChangeField),
		nullString(rule.ConditionField),
		nullString(rule.ConditionValue),
		nullString(rule.RecipientField),
		nullString(rule.StaticNumbers),
		rule.TemplateName,
		string(messageType),
		nullString(rule.DLRURL),
		rule.Enabled,
	).Scan(&id)
	return id, err
}
