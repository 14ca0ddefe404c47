// Package service orchestrates SMS dispatch: recipient normalization,
// token-gated gateway calls with a single retry on auth failure, and
// synchronous outcome logging.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ITNORWA/SMS-APP/internal/gateway"
	"github.com/ITNORWA/SMS-APP/internal/metrics"
	"github.com/ITNORWA/SMS-APP/internal/model"
	"github.com/ITNORWA/SMS-APP/internal/msisdn"
	"github.com/ITNORWA/SMS-APP/internal/repo"
)

type Gateway interface {
	Send(ctx context.Context, token string, p gateway.Payload) (int, []byte, error)
	SenderID() string
}

type TokenSource interface {
	ValidToken(ctx context.Context, force bool) (string, error)
}

type Dispatcher struct {
	gw      Gateway
	tokens  TokenSource
	logs    repo.LogRepository
	metrics *metrics.Metrics

	now   func() time.Time
	newID func() string
}

func NewDispatcher(gw Gateway, tokens TokenSource, logs repo.LogRepository, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		gw:      gw,
		tokens:  tokens,
		logs:    logs,
		metrics: m,
		now:     time.Now,
		newID:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Request describes one batch dispatch. Recipients accepts anything the
// normalizer does: a string, a slice, or a delimited/serialized list.
type Request struct {
	Recipients       any
	Message          string
	MessageType      model.MessageType
	DLRURL           string
	MessageID        string
	Encrypted        bool
	EncryptionMethod string
	Extra            map[string]any
	RefDocType       string
	RefName          string
}

// Dispatch sends one batch through the gateway. Everything that goes
// wrong after a token is in hand is folded into a Failed outcome so
// batch callers can aggregate; only the initial token acquisition
// returns an error, which the caller is expected to surface.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (model.Outcome, error) {
	set := msisdn.Normalize(req.Recipients)

	outcome := model.Outcome{
		Status:         model.StatusFailed,
		RecipientCount: len(set.Valid),
		Invalid:        set.Invalid,
		Duplicates:     set.Duplicates,
	}

	if len(set.Valid) == 0 {
		outcome.Response = "no valid mobile numbers provided"
		outcome.FailedCount = 0
		d.observe(outcome)
		return outcome, d.writeLogs(ctx, rejectedNumbers(set), req, outcome)
	}

	token, err := d.tokens.ValidToken(ctx, false)
	if err != nil {
		return outcome, err
	}

	outcome.MessageID = req.MessageID
	if outcome.MessageID == "" {
		outcome.MessageID = d.newID()
	}

	payload := gateway.Payload{
		MessageID:   outcome.MessageID,
		Message:     req.Message,
		Sender:      d.gw.SenderID(),
		MessageType: string(messageTypeOrDefault(req.MessageType)),
		MSISDNs:     set.Valid,
		DLRURL:      req.DLRURL,
		Extra:       req.Extra,
	}
	if req.Encrypted {
		payload.Encrypted = "1"
		payload.EncryptionMethod = req.EncryptionMethod
	}

	status, body, err := d.gw.Send(ctx, token, payload)
	if err == nil && status == 401 {
		// Token expired mid-flight. Refresh once and retry once;
		// whatever comes back the second time is final.
		var freshToken string
		freshToken, err = d.tokens.ValidToken(ctx, true)
		if err == nil {
			status, body, err = d.gw.Send(ctx, freshToken, payload)
		}
	}

	switch {
	case err != nil:
		outcome.Response = err.Error()
	default:
		outcome.Response = string(body)
		if classifySent(status, body) {
			outcome.Status = model.StatusSent
		}
	}

	if outcome.Status == model.StatusSent {
		outcome.SentCount = outcome.RecipientCount
	} else {
		outcome.FailedCount = outcome.RecipientCount
	}

	d.observe(outcome)
	return outcome, d.writeLogs(ctx, set.Valid, req, outcome)
}

// Aggregate derives the broadcast-level counters from the latest log row
// per distinct recipient of the referenced record.
func (d *Dispatcher) Aggregate(ctx context.Context, refDocType, refName string) (model.Aggregate, error) {
	latest, err := d.logs.LatestStatusByRecipient(ctx, refDocType, refName)
	if err != nil {
		return model.Aggregate{}, err
	}
	return aggregateFromLatest(latest), nil
}

func aggregateFromLatest(latest map[string]model.Status) model.Aggregate {
	agg := model.Aggregate{Total: len(latest)}
	for _, st := range latest {
		if st == model.StatusSent {
			agg.Sent++
		}
	}
	agg.Failed = agg.Total - agg.Sent
	agg.Status = resolveStatus(agg.Sent, agg.Total)
	return agg
}

func resolveStatus(sent, total int) model.Status {
	switch {
	case total <= 0:
		return model.StatusDraft
	case sent <= 0:
		return model.StatusFailed
	case sent < total:
		return model.StatusPartiallySent
	default:
		return model.StatusSent
	}
}

// classifySent treats HTTP 200/201 as success unless the body parses as
// JSON and carries an embedded status field with a non-success value.
func classifySent(status int, body []byte) bool {
	if status != 200 && status != 201 {
		return false
	}

	var parsed struct {
		Status any `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return true
	}

	switch v := parsed.Status.(type) {
	case nil:
		return true
	case string:
		return v == "200" || v == "201"
	case float64:
		return v == 200 || v == 201
	default:
		return false
	}
}

func (d *Dispatcher) writeLogs(ctx context.Context, numbers []string, req Request, outcome model.Outcome) error {
	if len(numbers) == 0 {
		// Keep a single diagnostic row so the failure is visible in the
		// log listing even when nothing parseable was entered.
		numbers = []string{""}
	}

	now := d.now().UTC()
	records := make([]model.LogRecord, 0, len(numbers))
	for _, number := range numbers {
		records = append(records, model.LogRecord{
			MobileNumber: number,
			Message:      req.Message,
			Status:       outcome.Status,
			APIResponse:  outcome.Response,
			RefDocType:   req.RefDocType,
			RefName:      req.RefName,
			CreatedAt:    now,
		})
	}

	if err := d.logs.InsertBatch(ctx, records); err != nil {
		slog.Error("writing sms log records failed", "error", err, "records", len(records))
		return err
	}
	return nil
}

func (d *Dispatcher) observe(outcome model.Outcome) {
	if d.metrics != nil {
		d.metrics.ObserveDispatch(string(outcome.Status), outcome.RecipientCount)
	}
}

// rejectedNumbers lists what should appear in diagnostic log rows when
// nothing valid survived normalization.
func rejectedNumbers(set msisdn.Set) []string {
	out := make([]string, 0, len(set.Invalid)+len(set.Duplicates))
	out = append(out, set.Invalid...)
	out = append(out, set.Duplicates...)
	return out
}

func messageTypeOrDefault(t model.MessageType) model.MessageType {
	if t == "" {
		return model.Transactional
	}
	return t
}
