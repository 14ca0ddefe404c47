package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func Router(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/v1/health", h.Health)

	r.Post("/v1/messages/send", h.SendMessage)
	r.Get("/v1/logs", h.ListLogs)

	r.Post("/v1/broadcasts", h.CreateBroadcast)
	r.Post("/v1/broadcasts/{id}/send", h.BroadcastSend)
	r.Post("/v1/broadcasts/{id}/resend-failed", h.BroadcastResendFailed)
	r.Get("/v1/broadcasts/{id}/status", h.BroadcastStatus)

	r.Post("/v1/templates/preview", h.TemplatePreview)
	r.Put("/v1/templates/{name}", h.UpsertTemplate)
	r.Get("/v1/templates", h.ListTemplates)

	r.Post("/v1/rules", h.CreateRule)
	r.Post("/v1/events", h.DocEvent)

	r.Post("/v1/credentials/test", h.CredentialsTest)
	r.Get("/v1/diagnostics/outbound-ip", h.OutboundIP)

	r.Get("/v1/scheduler/status", h.SchedulerStatus)
	r.Post("/v1/scheduler/start", h.SchedulerStart)
	r.Post("/v1/scheduler/stop", h.SchedulerStop)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("smsapp"))
	})

	return r
}
