package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ITNORWA/SMS-APP/internal/gateway"
	"github.com/ITNORWA/SMS-APP/internal/model"
	"github.com/ITNORWA/SMS-APP/internal/probe"
	"github.com/ITNORWA/SMS-APP/internal/repo"
	"github.com/ITNORWA/SMS-APP/internal/scheduler"
	"github.com/ITNORWA/SMS-APP/internal/service"
	"github.com/ITNORWA/SMS-APP/internal/template"
)

type Handler struct {
	dispatcher *service.Dispatcher
	broadcasts *service.BroadcastService
	events     *service.EventService
	templates  repo.TemplateRepository
	rules      repo.RuleRepository
	logs       repo.LogRepository
	gw         *gateway.Client
	sched      *scheduler.Scheduler
	prober     *probe.Prober
	defaultDLR string
}

func NewHandler(
	dispatcher *service.Dispatcher,
	broadcasts *service.BroadcastService,
	events *service.EventService,
	templates repo.TemplateRepository,
	rules repo.RuleRepository,
	logs repo.LogRepository,
	gw *gateway.Client,
	sched *scheduler.Scheduler,
	prober *probe.Prober,
	defaultDLR string,
) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		broadcasts: broadcasts,
		events:     events,
		templates:  templates,
		rules:      rules,
		logs:       logs,
		gw:         gw,
		sched:      sched,
		prober:     prober,
		defaultDLR: defaultDLR,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// SendMessage is the manual "send test message" entry point.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mobile           any               `json:"mobile"`
		Message          string            `json:"message"`
		MessageType      model.MessageType `json:"message_type"`
		DLRURL           string            `json:"dlr_url"`
		MessageID        string            `json:"message_id"`
		ReferenceDocType string            `json:"reference_doctype"`
		ReferenceName    string            `json:"reference_name"`
		Extra            map[string]any    `json:"extra"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Mobile == nil {
		writeError(w, http.StatusBadRequest, "mobile is required")
		return
	}

	dlr := req.DLRURL
	if dlr == "" {
		dlr = h.defaultDLR
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), service.Request{
		Recipients:  req.Mobile,
		Message:     req.Message,
		MessageType: req.MessageType,
		DLRURL:      dlr,
		MessageID:   req.MessageID,
		Extra:       req.Extra,
		RefDocType:  req.ReferenceDocType,
		RefName:     req.ReferenceName,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message        string            `json:"message"`
		TemplateName   string            `json:"template_name"`
		TemplateValues string            `json:"template_values"`
		Recipients     string            `json:"recipients"`
		MessageType    model.MessageType `json:"message_type"`
		DLRURL         string            `json:"dlr_url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.broadcasts.Create(r.Context(), model.Broadcast{
		Message:        req.Message,
		TemplateName:   req.TemplateName,
		TemplateValues: req.TemplateValues,
		RecipientInput: req.Recipients,
		MessageType:    req.MessageType,
		DLRURL:         req.DLRURL,
	})
	if err != nil {
		writeBroadcastError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) BroadcastSend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Recipients string `json:"recipients"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	res, err := h.broadcasts.Send(r.Context(), id, req.Recipients)
	if err != nil {
		writeBroadcastError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) BroadcastResendFailed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.broadcasts.ResendFailed(r.Context(), id)
	if err != nil {
		writeBroadcastError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) BroadcastStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	agg, err := h.broadcasts.Aggregate(r.Context(), id)
	if err != nil {
		writeBroadcastError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// TemplatePreview renders a stored template (by name) or ad-hoc content
// against the supplied values without sending anything.
func (h *Handler) TemplatePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateName string         `json:"template_name"`
		Content      string         `json:"content"`
		Values       map[string]any `json:"values"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	content := req.Content
	if req.TemplateName != "" {
		tmpl, err := h.templates.Get(r.Context(), req.TemplateName)
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		content = tmpl.Content
	}
	if content == "" {
		writeError(w, http.StatusBadRequest, "template_name or content is required")
		return
	}

	rendered, missing := template.Render(content, req.Values)
	writeJSON(w, http.StatusOK, map[string]any{
		"rendered_message":     rendered,
		"missing_placeholders": missing,
	})
}

func (h *Handler) UpsertTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Content string `json:"content"`
		Active  *bool  `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.templates.Upsert(r.Context(), model.Template{
		Name:    name,
		Content: req.Content,
		Active:  active,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.templates.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule model.Rule
	if !decodeBody(w, r, &rule) {
		return
	}
	if rule.DocumentType == "" || rule.TriggerEvent == "" || rule.TemplateName == "" {
		writeError(w, http.StatusBadRequest, "document_type, trigger_event and template_name are required")
		return
	}

	id, err := h.rules.Create(r.Context(), rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// DocEvent receives document lifecycle notifications from the host
// platform and runs the matching dispatch rules.
func (h *Handler) DocEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if !decodeBody(w, r, &ev) {
		return
	}

	outcomes, err := h.events.HandleDocEvent(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.logs.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CredentialsTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseURL  string `json:"base_url"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	check := h.gw.TestCredentials(r.Context(), req.BaseURL, req.Username, req.Password)
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) OutboundIP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prober.OutboundIP(r.Context()))
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid broadcast id")
		return 0, false
	}
	return id, true
}

func writeBroadcastError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoRecipients),
		errors.Is(err, service.ErrNoFailedRecipients),
		errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
