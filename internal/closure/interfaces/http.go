// Package interfaces exposes shift closures over HTTP and renders reports.
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fuel-backoffice/internal/audit"
	"fuel-backoffice/internal/auth"
	closureapp "fuel-backoffice/internal/closure/application"
	closure "fuel-backoffice/internal/closure/domain"
	"fuel-backoffice/internal/observability/metrics"
	"fuel-backoffice/internal/reportstore"
)

const basePath = "/api/v1/shift-closures"

// ExportRecorder remembers where an archived report was written.
type ExportRecorder interface {
	RecordExport(ctx context.Context, closureID, format, location string) error
}

// Handler serves shift closure endpoints.
type Handler struct {
	service      *closureapp.ShiftClosureService
	checker      auth.PointOfSaleTenantChecker
	auditLogger  audit.Logger
	reports      reportstore.Store
	reportPrefix string
	exports      ExportRecorder
	logger       *zap.Logger
}

// HandlerOption configures Handler.
type HandlerOption func(*Handler)

// WithReportStore archives every rendered report under prefix.
func WithReportStore(store reportstore.Store, prefix string) HandlerOption {
	return func(h *Handler) {
		h.reports = store
		h.reportPrefix = prefix
	}
}

// WithExportRecorder records archived report locations.
func WithExportRecorder(recorder ExportRecorder) HandlerOption {
	return func(h *Handler) {
		h.exports = recorder
	}
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(service *closureapp.ShiftClosureService, checker auth.PointOfSaleTenantChecker, auditLogger audit.Logger, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("shift closure handler: nil service")
	}
	h := &Handler{service: service, checker: checker, auditLogger: auditLogger, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP routes shift closure requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, basePath) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, basePath), "/")
	if path == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleProcess(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if !strings.HasPrefix(r.URL.Path, basePath+"/") || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(path, "/")
	closureID := parts[0]
	if len(parts) == 1 {
		h.handleGet(w, r, closureID)
		return
	}
	if len(parts) == 2 && parts[1] == "export.pdf" {
		h.handleExport(w, r, closureID, "pdf")
		return
	}
	if len(parts) == 2 && parts[1] == "export.xlsx" {
		h.handleExport(w, r, closureID, "xlsx")
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req closure.ShiftClosureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := ensurePointOfSaleOpen(r, h.checker, req.PointOfSaleID); err != nil {
		respondTenantError(w, err)
		return
	}
	if strings.TrimSpace(req.Operator) == "" {
		req.Operator = auth.SubjectFromContext(r.Context())
	}

	result, err := h.service.Process(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status := http.StatusOK
	if result.Status == closure.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
	h.logAudit(r, result.PointOfSaleID, "shift_closure.process", result.ClosureID, map[string]any{
		"status":   result.Status,
		"errors":   len(result.Errors),
		"warnings": len(result.Warnings),
		"value":    result.Totals.Value.StringFixed(2),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	pointOfSaleID := strings.TrimSpace(r.URL.Query().Get("point_of_sale_id"))
	if pointOfSaleID == "" {
		http.Error(w, "point_of_sale_id is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if err := ensurePointOfSaleTenant(r, h.checker, pointOfSaleID); err != nil {
		respondTenantError(w, err)
		return
	}
	records, err := h.service.List(r.Context(), pointOfSaleID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	results := make([]closure.Result, 0, len(records))
	for _, record := range records {
		results = append(results, record.Result())
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, closureID string) {
	record, ok := h.loadRecord(w, r, closureID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record.Result())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, closureID, format string) {
	record, ok := h.loadRecord(w, r, closureID)
	if !ok {
		return
	}

	start := time.Now()
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case "pdf":
		body, err = BuildClosurePDF(record)
		contentType = ContentTypePDF
	default:
		body, err = BuildClosureXLSX(record)
		contentType = ContentTypeXLSX
	}
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		h.logger.Error("render closure report", zap.String("closure_id", closureID), zap.String("format", format), zap.Error(err))
		http.Error(w, "report rendering failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))

	location := h.archive(r.Context(), record, format, contentType, body)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"closure-"+closureID+"."+format+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	h.logAudit(r, record.PointOfSaleID, "shift_closure.export", closureID, map[string]any{
		"format":   format,
		"location": location,
	})
}

// archive stores the report when a store is configured. Failures are logged
// and never fail the download.
func (h *Handler) archive(ctx context.Context, record *closure.ClosureRecord, format, contentType string, body []byte) string {
	if h.reports == nil {
		return ""
	}
	key := reportstore.Key(h.reportPrefix, record.PointOfSaleID, record.ID, format)
	location, err := h.reports.Put(ctx, key, contentType, body)
	if err != nil {
		metrics.ObserveReportArchive(metrics.ResultError)
		h.logger.Warn("archive closure report", zap.String("closure_id", record.ID), zap.String("key", key), zap.Error(err))
		return ""
	}
	metrics.ObserveReportArchive(metrics.ResultSuccess)
	if h.exports != nil {
		if err := h.exports.RecordExport(ctx, record.ID, format, location); err != nil {
			h.logger.Warn("record closure export", zap.String("closure_id", record.ID), zap.Error(err))
		}
	}
	return location
}

func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request, closureID string) (*closure.ClosureRecord, bool) {
	record, err := h.service.Get(r.Context(), closureID)
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	if record == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	if err := ensurePointOfSaleTenant(r, h.checker, record.PointOfSaleID); err != nil {
		respondTenantError(w, err)
		return nil, false
	}
	return record, true
}

func (h *Handler) logAudit(r *http.Request, pointOfSaleID, action, closureID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:      tenantID,
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        action,
		ResourceType:  "shift_closure",
		ResourceID:    closureID,
		PointOfSaleID: pointOfSaleID,
		Metadata:      payload,
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log", zap.String("action", action), zap.Error(err))
	}
}

func ensurePointOfSaleTenant(r *http.Request, checker auth.PointOfSaleTenantChecker, pointOfSaleID string) error {
	tenantID := auth.TenantIDFromContext(r.Context())
	if checker == nil || tenantID == "" || pointOfSaleID == "" {
		return nil
	}
	return checker.EnsurePointOfSaleTenant(r.Context(), tenantID, pointOfSaleID)
}

func ensurePointOfSaleOpen(r *http.Request, checker auth.PointOfSaleTenantChecker, pointOfSaleID string) error {
	if checker == nil || pointOfSaleID == "" {
		return nil
	}
	return checker.EnsurePointOfSaleOpen(r.Context(), auth.TenantIDFromContext(r.Context()), pointOfSaleID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, auth.ErrPointOfSaleInactive) {
		http.Error(w, "point of sale inactive", http.StatusConflict)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, closure.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, closure.ErrRecordNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
