package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/garimpo-judicial/internal/config"
	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
	"github.com/kirillkom/garimpo-judicial/internal/observability/metrics"
)

const (
	userIDHeader     = "X-User-ID"
	maxBodyBytes     = 1 << 20
	backpressureWait = 250 * time.Millisecond
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Services groups the inbound contracts served over HTTP.
type Services struct {
	Triage    ports.TriageService
	Portfolio ports.PortfolioService
	Analysis  ports.AnalysisService
	Listings  ports.ListingCorrector
	Exporter  ports.PortfolioExporter
	Audit     ports.AuditService
}

type Options struct {
	Service string
	Logger  *slog.Logger
	// Metrics is optional; /metrics is only mounted when set.
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	cfg      config.Config
	services Services
	service  string
	logger   *slog.Logger
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, services Services, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := opts.Service
	if service == "" {
		service = "garimpo-api"
	}
	return &Router{
		cfg:      cfg,
		services: services,
		service:  service,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/triage/pending", rt.pendingQueue)
	mux.HandleFunc("POST /v1/triage/decisions", rt.submitDecision)
	mux.HandleFunc("GET /v1/triage/filters", rt.filterVocabulary)
	mux.HandleFunc("GET /v1/triage/stats", rt.stats)

	mux.HandleFunc("GET /v1/portfolio", rt.portfolio)
	mux.HandleFunc("GET /v1/portfolio/export.xlsx", rt.exportPortfolio)
	mux.HandleFunc("POST /v1/evaluations/{site}/{listing_id}/advance", rt.advanceStatus)

	mux.HandleFunc("GET /v1/analysis/{site}/{listing_id}", rt.getAnalysis)
	mux.HandleFunc("PUT /v1/analysis/{site}/{listing_id}", rt.saveAnalysis)

	mux.HandleFunc("PATCH /v1/listings/{site}/{listing_id}", rt.correctListing)
	mux.HandleFunc("GET /v1/listings/{site}/{listing_id}/history", rt.listingHistory)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = timeoutMiddleware(handler, time.Duration(rt.cfg.APIRequestTimeoutSeconds)*time.Second)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait, rt.recordRejected)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(rt.service, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) pendingQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ListingFilter{
		UFs:          queryList(q["uf"]),
		Cities:       queryList(q["city"]),
		AssetTypes:   queryList(q["asset_type"]),
		Sites:        queryList(q["site"]),
		AuctionTypes: queryList(q["auction_type"]),
	}

	listings, err := rt.services.Triage.FetchPendingQueue(r.Context(), userIDFromRequest(r), filter)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": listings, "count": len(listings)})
}

type decisionRequest struct {
	UserID   string              `json:"user_id"`
	Decision string              `json:"decision"`
	Items    []domain.ListingRef `json:"items"`
}

func (rt *Router) submitDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	decision, err := domain.ParseState(req.Decision)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	written, err := rt.services.Triage.SubmitBatchDecision(r.Context(), orHeaderUser(req.UserID, r), req.Items, decision)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"written": written})
}

func (rt *Router) filterVocabulary(w http.ResponseWriter, r *http.Request) {
	vocab, err := rt.services.Triage.FetchFilterVocabulary(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vocab)
}

// stats always answers 200; the service degrades to zero counts.
func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.services.Triage.FetchStats(r.Context(), userIDFromRequest(r)))
}

func (rt *Router) portfolio(w http.ResponseWriter, r *http.Request) {
	view, err := rt.services.Portfolio.FetchPortfolio(r.Context(), userIDFromRequest(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
		state, err := domain.ParseState(raw)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		view = domain.PortfolioView{Items: view.ByState(state)}
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) exportPortfolio(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	rows, err := rt.services.Exporter.ExportPortfolio(r.Context(), userIDFromRequest(r), &buf)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="carteira.xlsx"`)
	w.Header().Set("X-Portfolio-Rows", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type advanceRequest struct {
	UserID string `json:"user_id"`
	State  string `json:"state"`
}

func (rt *Router) advanceStatus(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	state, err := domain.ParseState(req.State)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	site, listingID := r.PathValue("site"), r.PathValue("listing_id")
	if err := rt.services.Portfolio.AdvanceStatus(r.Context(), orHeaderUser(req.UserID, r), site, listingID, state); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := rt.services.Analysis.FetchDeepAnalysis(
		r.Context(),
		userIDFromRequest(r),
		r.PathValue("site"),
		r.PathValue("listing_id"),
	)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) saveAnalysis(w http.ResponseWriter, r *http.Request) {
	var analysis domain.DeepAnalysis
	if err := decodeJSON(w, r, &analysis); err != nil {
		rt.writeError(w, r, err)
		return
	}
	analysis.Site = r.PathValue("site")
	analysis.ListingID = r.PathValue("listing_id")
	analysis.UserID = orHeaderUser(analysis.UserID, r)

	if err := rt.services.Analysis.SaveDeepAnalysis(r.Context(), analysis); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) correctListing(w http.ResponseWriter, r *http.Request) {
	var correction domain.ListingCorrection
	if err := decodeJSON(w, r, &correction); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.services.Listings.CorrectListingCoreData(r.Context(), r.PathValue("site"), r.PathValue("listing_id"), correction); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listingHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "listing history", fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}
	events, err := rt.services.Audit.History(r.Context(), r.PathValue("site"), r.PathValue("listing_id"), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rt.logger.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func userIDFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(userIDHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}

func orHeaderUser(bodyUserID string, r *http.Request) string {
	if v := strings.TrimSpace(bodyUserID); v != "" {
		return v
	}
	return userIDFromRequest(r)
}

// queryList accepts both repeated parameters and comma-separated values.
func queryList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
