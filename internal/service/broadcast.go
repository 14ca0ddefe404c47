package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ITNORWA/SMS-APP/internal/model"
	"github.com/ITNORWA/SMS-APP/internal/repo"
	"github.com/ITNORWA/SMS-APP/internal/template"
)

// BroadcastDocType is the backlink document type for broadcast log rows.
const BroadcastDocType = "SMS Broadcast"

var (
	ErrNoRecipients       = errors.New("no recipients resolved for broadcast")
	ErrNoFailedRecipients = errors.New("no failed recipients found for this broadcast")
	ErrEmptyMessage       = errors.New("message is required: enter a message or choose a template")
)

type BroadcastService struct {
	broadcasts repo.BroadcastRepository
	templates  repo.TemplateRepository
	logs       repo.LogRepository
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewBroadcastService(
	broadcasts repo.BroadcastRepository,
	templates repo.TemplateRepository,
	logs repo.LogRepository,
	dispatcher *Dispatcher,
) *BroadcastService {
	return &BroadcastService{
		broadcasts: broadcasts,
		templates:  templates,
		logs:       logs,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// BroadcastResult combines the attempt-level outcome with the
// record-level aggregate recomputed from the log history.
type BroadcastResult struct {
	model.Aggregate
	Outcome         model.Outcome `json:"outcome"`
	RenderedMessage string        `json:"rendered_message"`
}

// Create stores a new draft broadcast. The message body is validated the
// same way a send would, so an unsendable broadcast is rejected up front.
func (s *BroadcastService) Create(ctx context.Context, b model.Broadcast) (int64, error) {
	if strings.TrimSpace(b.RecipientInput) == "" {
		return 0, ErrNoRecipients
	}
	if _, err := s.buildMessage(ctx, b); err != nil {
		return 0, err
	}

	b.ID = 0
	b.Status = model.StatusDraft
	return s.broadcasts.Create(ctx, b)
}

// Send dispatches a broadcast to its configured recipients, or to
// overrideRecipients when non-empty, then refreshes the stored counters
// from the log history.
func (s *BroadcastService) Send(ctx context.Context, id int64, overrideRecipients string) (BroadcastResult, error) {
	b, err := s.broadcasts.Get(ctx, id)
	if err != nil {
		return BroadcastResult{}, err
	}

	recipients := strings.TrimSpace(overrideRecipients)
	if recipients == "" {
		recipients = strings.TrimSpace(b.RecipientInput)
	}
	if recipients == "" {
		return BroadcastResult{}, ErrNoRecipients
	}

	return s.send(ctx, b, recipients)
}

// ResendFailed re-dispatches only the recipients whose latest log row is
// not Sent. The previous rows stay as they are; new rows record the new
// attempt.
func (s *BroadcastService) ResendFailed(ctx context.Context, id int64) (BroadcastResult, error) {
	b, err := s.broadcasts.Get(ctx, id)
	if err != nil {
		return BroadcastResult{}, err
	}

	latest, err := s.logs.LatestStatusByRecipient(ctx, BroadcastDocType, refName(id))
	if err != nil {
		return BroadcastResult{}, err
	}

	var failed []string
	for mobile, st := range latest {
		if st != model.StatusSent {
			failed = append(failed, mobile)
		}
	}
	if len(failed) == 0 {
		return BroadcastResult{}, ErrNoFailedRecipients
	}

	return s.send(ctx, b, failed)
}

func (s *BroadcastService) Aggregate(ctx context.Context, id int64) (model.Aggregate, error) {
	if _, err := s.broadcasts.Get(ctx, id); err != nil {
		return model.Aggregate{}, err
	}
	return s.dispatcher.Aggregate(ctx, BroadcastDocType, refName(id))
}

func (s *BroadcastService) send(ctx context.Context, b model.Broadcast, recipients any) (BroadcastResult, error) {
	message, err := s.buildMessage(ctx, b)
	if err != nil {
		return BroadcastResult{}, err
	}

	outcome, err := s.dispatcher.Dispatch(ctx, Request{
		Recipients:  recipients,
		Message:     message,
		MessageType: b.MessageType,
		DLRURL:      b.DLRURL,
		MessageID:   b.MessageID,
		RefDocType:  BroadcastDocType,
		RefName:     refName(b.ID),
	})
	if err != nil {
		return BroadcastResult{}, err
	}

	agg, err := s.dispatcher.Aggregate(ctx, BroadcastDocType, refName(b.ID))
	if err != nil {
		return BroadcastResult{}, err
	}

	sentOn := s.now().UTC()
	b.MessageID = outcome.MessageID
	b.RenderedMessage = message
	b.LastResponse = outcome.Response
	b.SentOn = &sentOn
	b.Total = agg.Total
	b.Sent = agg.Sent
	b.Failed = agg.Failed
	b.Status = agg.Status

	if err := s.broadcasts.UpdateAfterSend(ctx, b); err != nil {
		return BroadcastResult{}, err
	}

	return BroadcastResult{
		Aggregate:       agg,
		Outcome:         outcome,
		RenderedMessage: message,
	}, nil
}

// buildMessage resolves the broadcast body: a template reference wins
// over the inline message, and unresolved placeholder keys abort the
// send so half-rendered messages never reach a phone.
func (s *BroadcastService) buildMessage(ctx context.Context, b model.Broadcast) (string, error) {
	if b.TemplateName == "" {
		message := strings.TrimSpace(b.Message)
		if message == "" {
			return "", ErrEmptyMessage
		}
		return message, nil
	}

	tmpl, err := s.templates.Get(ctx, b.TemplateName)
	if err != nil {
		return "", fmt.Errorf("loading template %q: %w", b.TemplateName, err)
	}
	if !tmpl.Active {
		return "", fmt.Errorf("template %q is disabled", b.TemplateName)
	}
	if strings.TrimSpace(tmpl.Content) == "" {
		return "", fmt.Errorf("template %q has no message content", b.TemplateName)
	}

	values, err := parseTemplateValues(b.TemplateValues)
	if err != nil {
		return "", err
	}

	rendered, missing := template.Render(tmpl.Content, values)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template values for: %s", strings.Join(missing, ", "))
	}
	return strings.TrimSpace(rendered), nil
}

func parseTemplateValues(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("template values must be a JSON object: %w", err)
	}
	return values, nil
}

func refName(id int64) string {
	return strconv.FormatInt(id, 10)
}
