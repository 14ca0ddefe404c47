package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ITNORWA/SMS-APP/internal/gateway"
	"github.com/ITNORWA/SMS-APP/internal/model"
	"github.com/ITNORWA/SMS-APP/internal/repo"
	"github.com/ITNORWA/SMS-APP/internal/service"
)

type memBroadcasts struct {
	mu    sync.Mutex
	items map[int64]model.Broadcast
}

func newMemBroadcasts(items ...model.Broadcast) *memBroadcasts {
	m := &memBroadcasts{items: make(map[int64]model.Broadcast)}
	for _, b := range items {
		m.items[b.ID] = b
	}
	return m
}

func (m *memBroadcasts) Get(ctx context.Context, id int64) (model.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return model.Broadcast{}, repo.ErrNotFound
	}
	return b, nil
}

func (m *memBroadcasts) Create(ctx context.Context, b model.Broadcast) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = int64(len(m.items) + 1)
	m.items[b.ID] = b
	return b.ID, nil
}

func (m *memBroadcasts) UpdateAfterSend(ctx context.Context, b model.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[b.ID]; !ok {
		return repo.ErrNotFound
	}
	m.items[b.ID] = b
	return nil
}

type memTemplates struct {
	items map[string]model.Template
}

func (m *memTemplates) Get(ctx context.Context, name string) (model.Template, error) {
	t, ok := m.items[name]
	if !ok {
		return model.Template{}, repo.ErrNotFound
	}
	return t, nil
}

func (m *memTemplates) Upsert(ctx context.Context, t model.Template) error {
	m.items[t.Name] = t
	return nil
}

func (m *memTemplates) List(ctx context.Context) ([]model.Template, error) {
	var out []model.Template
	for _, t := range m.items {
		out = append(out, t)
	}
	return out, nil
}

func okGateway(t *testing.T, capture *[][]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			MSISDNs []string `json:"msisdns"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if capture != nil {
			mu.Lock()
			*capture = append(*capture, payload.MSISDNs)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":200}`))
	}))
}

func newBroadcastFixture(t *testing.T, srvURL string, b model.Broadcast, tmpl ...model.Template) (*service.BroadcastService, *memBroadcasts, *memLogs) {
	t.Helper()

	logs := &memLogs{}
	broadcasts := newMemBroadcasts(b)
	templates := &memTemplates{items: make(map[string]model.Template)}
	for _, tm := range tmpl {
		templates.items[tm.Name] = tm
	}

	dispatcher := service.NewDispatcher(
		gateway.New(gateway.Config{BaseURL: srvURL, SenderID: "ACME"}),
		&fakeTokens{token: "tok"},
		logs,
		nil,
	)
	svc := service.NewBroadcastService(broadcasts, templates, logs, dispatcher)
	return svc, broadcasts, logs
}

func TestBroadcastSend_InlineMessage(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, broadcasts, logs := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:             1,
		Message:        "inline hello",
		RecipientInput: "254712345678, 254712345679",
		Status:         model.StatusDraft,
	})

	res, err := svc.Send(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if res.Status != model.StatusSent || res.Total != 2 || res.Sent != 2 {
		t.Fatalf("unexpected aggregate: %+v", res.Aggregate)
	}
	if res.RenderedMessage != "inline hello" {
		t.Fatalf("unexpected rendered message: %q", res.RenderedMessage)
	}

	stored, _ := broadcasts.Get(context.Background(), 1)
	if stored.Status != model.StatusSent || stored.Total != 2 || stored.SentOn == nil {
		t.Fatalf("expected broadcast updated after send, got %+v", stored)
	}

	if len(logs.all()) != 2 {
		t.Fatalf("expected two log rows, got %d", len(logs.all()))
	}
}

func TestBroadcastSend_TemplateRendering(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, _, _ := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:             1,
		TemplateName:   "welcome",
		TemplateValues: `{"name":"Amina"}`,
		RecipientInput: "254712345678",
	}, model.Template{Name: "welcome", Content: "Hi {{name}}!", Active: true})

	res, err := svc.Send(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.RenderedMessage != "Hi Amina!" {
		t.Fatalf("unexpected rendered message: %q", res.RenderedMessage)
	}
}

func TestBroadcastSend_MissingTemplateValuesAbort(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, _, logs := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:             1,
		TemplateName:   "welcome",
		TemplateValues: `{}`,
		RecipientInput: "254712345678",
	}, model.Template{Name: "welcome", Content: "Hi {{name}}, code {{code}}", Active: true})

	_, err := svc.Send(context.Background(), 1, "")
	if err == nil {
		t.Fatalf("expected missing-values error")
	}
	if !strings.Contains(err.Error(), "code") || !strings.Contains(err.Error(), "name") {
		t.Fatalf("expected missing keys named in error, got: %v", err)
	}
	if len(logs.all()) != 0 {
		t.Fatalf("expected no log rows for aborted send, got %d", len(logs.all()))
	}
}

func TestBroadcastSend_DisabledTemplateRefused(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, _, _ := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:             1,
		TemplateName:   "welcome",
		RecipientInput: "254712345678",
	}, model.Template{Name: "welcome", Content: "Hi", Active: false})

	_, err := svc.Send(context.Background(), 1, "")
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled-template error, got: %v", err)
	}
}

func TestBroadcastSend_NoRecipients(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, _, _ := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:      1,
		Message: "hello",
	})

	_, err := svc.Send(context.Background(), 1, "")
	if !errors.Is(err, service.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got: %v", err)
	}
}

func TestBroadcastCreate_StoresDraft(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, broadcasts, _ := newBroadcastFixture(t, srv.URL, model.Broadcast{ID: 1, Message: "seed"})

	id, err := svc.Create(context.Background(), model.Broadcast{
		Message:        "promo",
		RecipientInput: "254712345678",
		Status:         model.StatusSent, // callers cannot pre-set a terminal status
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	stored, err := broadcasts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("stored broadcast missing: %v", err)
	}
	if stored.Status != model.StatusDraft {
		t.Fatalf("expected Draft, got %s", stored.Status)
	}
}

func TestBroadcastCreate_RejectsUnsendable(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, _, _ := newBroadcastFixture(t, srv.URL, model.Broadcast{ID: 1, Message: "seed"})

	if _, err := svc.Create(context.Background(), model.Broadcast{Message: "promo"}); !errors.Is(err, service.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got: %v", err)
	}

	if _, err := svc.Create(context.Background(), model.Broadcast{RecipientInput: "254712345678"}); !errors.Is(err, service.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got: %v", err)
	}
}

func TestBroadcastResendFailed_OnlyFailedRecipients(t *testing.T) {
	t.Parallel()

	var sentBatches [][]string
	srv := okGateway(t, &sentBatches)
	defer srv.Close()

	svc, broadcasts, logs := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:      1,
		Message: "hello again",
	})

	// Prior history: A sent, B and C failed.
	_ = logs.InsertBatch(context.Background(), []model.LogRecord{
		{MobileNumber: "254712345601", Status: model.StatusSent, RefDocType: service.BroadcastDocType, RefName: "1"},
		{MobileNumber: "254712345602", Status: model.StatusFailed, RefDocType: service.BroadcastDocType, RefName: "1"},
		{MobileNumber: "254712345603", Status: model.StatusFailed, RefDocType: service.BroadcastDocType, RefName: "1"},
	})

	res, err := svc.ResendFailed(context.Background(), 1)
	if err != nil {
		t.Fatalf("ResendFailed() error: %v", err)
	}

	if len(sentBatches) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(sentBatches))
	}
	got := append([]string(nil), sentBatches[0]...)
	sort.Strings(got)
	want := []string{"254712345602", "254712345603"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected only failed recipients resent, got %v", got)
	}

	// All three recipients are now Sent at their latest row.
	if res.Status != model.StatusSent || res.Total != 3 || res.Sent != 3 {
		t.Fatalf("unexpected aggregate after resend: %+v", res.Aggregate)
	}

	stored, _ := broadcasts.Get(context.Background(), 1)
	if stored.Status != model.StatusSent {
		t.Fatalf("expected broadcast status Sent, got %s", stored.Status)
	}
}

func TestBroadcastResendFailed_NothingToResend(t *testing.T) {
	t.Parallel()

	srv := okGateway(t, nil)
	defer srv.Close()

	svc, _, logs := newBroadcastFixture(t, srv.URL, model.Broadcast{
		ID:      1,
		Message: "hello",
	})
	_ = logs.InsertBatch(context.Background(), []model.LogRecord{
		{MobileNumber: "254712345601", Status: model.StatusSent, RefDocType: service.BroadcastDocType, RefName: "1"},
	})

	_, err := svc.ResendFailed(context.Background(), 1)
	if !errors.Is(err, service.ErrNoFailedRecipients) {
		t.Fatalf("expected ErrNoFailedRecipients, got: %v", err)
	}
}
