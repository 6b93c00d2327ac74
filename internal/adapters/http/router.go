package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/emalabs/ask-ema/internal/config"
	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/core/ports"
	"github.com/emalabs/ask-ema/internal/infrastructure/export"
	"github.com/emalabs/ask-ema/internal/observability/metrics"
)

type Router struct {
	cfg       config.Config
	answerer  ports.QuestionAnswerer
	auditRepo ports.AuditRepository
	metrics   *metrics.HTTPServerMetrics
	service   string
}

func NewRouter(
	cfg config.Config,
	answerer ports.QuestionAnswerer,
	auditRepo ports.AuditRepository,
	serverMetrics *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		cfg:       cfg,
		answerer:  answerer,
		auditRepo: auditRepo,
		metrics:   serverMetrics,
		service:   service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/api/vector-search", rt.vectorSearch)
	mux.HandleFunc("/api/vector-search/stream", rt.vectorSearchStream)
	mux.HandleFunc("/api/audit/export", rt.exportAudit)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchRequest is the wire shape of a search call: an envelope whose prompt
// field is itself a JSON document. Clients were built against this double
// encoding, so it stays.
type searchRequest struct {
	Prompt string `json:"prompt"`
}

type searchPayload struct {
	Query         string `json:"query"`
	HumanResponse string `json:"humanResponse"`
}

func (rt *Router) parseQuery(r *http.Request) (domain.Query, error) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.Query{}, domain.NewUserError("Missing request data", nil)
	}
	if req.Prompt == "" {
		return domain.Query{}, domain.NewUserError("Missing request data", nil)
	}

	var payload searchPayload
	if err := json.Unmarshal([]byte(req.Prompt), &payload); err != nil {
		return domain.Query{}, domain.WrapError(domain.ErrApplication, "parse prompt payload", err)
	}
	if payload.Query == "" {
		return domain.Query{}, domain.NewUserError("Missing query in request data", nil)
	}

	return domain.NewQuery(payload.Query, payload.HumanResponse, time.Now()), nil
}

func (rt *Router) vectorSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query, err := rt.parseQuery(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	start := time.Now()
	result, err := rt.answerer.Answer(r.Context(), query)
	if err != nil {
		rt.recordOutcome(err, time.Since(start))
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.RecordPipelineOutcome(rt.service, "success", time.Since(start))

	// Body is plain text despite the declared content type. Existing clients
	// read it as-is, so the mismatch is load-bearing.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Text))
}

func (rt *Router) exportAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	records, err := rt.auditRepo.ListRecent(r.Context(), rt.cfg.AuditExportLimit)
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrApplication, "list audit records", err))
		return
	}

	workbook, err := export.BuildAuditWorkbook(records)
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrApplication, "build audit workbook", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="queries.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := workbook.Write(w); err != nil {
		// Headers are gone; nothing left to do but log.
		logRequestError(r, "write audit workbook", err)
	}
}

func (rt *Router) recordOutcome(err error, duration time.Duration) {
	outcome := "error"
	if ue := asUserError(err); ue != nil {
		outcome = "rejected"
		if flagged, ok := ue.Data["flagged"].(bool); ok && flagged {
			rt.metrics.RecordModerationFlagged(rt.service)
		}
	}
	rt.metrics.RecordPipelineOutcome(rt.service, outcome, duration)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
