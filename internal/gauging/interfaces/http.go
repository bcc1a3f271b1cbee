// Package interfaces exposes tank calibration and gauging over HTTP.
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fuel-backoffice/internal/audit"
	"fuel-backoffice/internal/auth"
	gaugingapp "fuel-backoffice/internal/gauging/application"
	gauging "fuel-backoffice/internal/gauging/domain"
	masterdata "fuel-backoffice/internal/masterdata/domain"
)

const (
	basePath        = "/api/v1/tanks/"
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadBytes  = 8 << 20
)

// Handler serves tank calibration endpoints.
type Handler struct {
	service          *gaugingapp.GaugingService
	tanks            masterdata.TankRepository
	checker          auth.PointOfSaleTenantChecker
	auditLogger      audit.Logger
	defaultIncrement float64
	logger           *zap.Logger
}

// HandlerOption configures Handler.
type HandlerOption func(*Handler)

// WithDefaultIncrement sets the sampling step used when a generate request
// does not name one.
func WithDefaultIncrement(cm float64) HandlerOption {
	return func(h *Handler) {
		if cm > 0 {
			h.defaultIncrement = cm
		}
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
func NewHandler(service *gaugingapp.GaugingService, tanks masterdata.TankRepository, checker auth.PointOfSaleTenantChecker, auditLogger audit.Logger, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("tank handler: nil service")
	}
	if tanks == nil {
		return nil, errors.New("tank handler: nil tank repository")
	}
	h := &Handler{
		service:          service,
		tanks:            tanks,
		checker:          checker,
		auditLogger:      auditLogger,
		defaultIncrement: 1,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP routes tank requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, basePath) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, basePath), "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tankID := parts[0]
	tank, err := h.tanks.GetTank(r.Context(), tankID)
	if err != nil {
		http.Error(w, "tank lookup failed", http.StatusInternalServerError)
		return
	}
	if tank == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	route := strings.Join(parts[1:], "/")
	ensure := ensurePointOfSaleTenant
	if route == "height" && r.Method == http.MethodPost {
		ensure = ensurePointOfSaleOpen
	}
	if err := ensure(r, h.checker, tank.PointOfSaleID); err != nil {
		respondTenantError(w, err)
		return
	}

	switch {
	case route == "calibration/generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r, tank)
	case route == "calibration" && r.Method == http.MethodPut:
		h.handleImport(w, r, tank)
	case route == "calibration.csv" && r.Method == http.MethodGet:
		h.handleExportCSV(w, r, tank)
	case route == "calibration.xlsx" && r.Method == http.MethodGet:
		h.handleExportXLSX(w, r, tank)
	case route == "calibration/validate" && r.Method == http.MethodGet:
		h.handleValidate(w, r, tank)
	case route == "volume" && r.Method == http.MethodGet:
		h.handleVolume(w, r, tank)
	case route == "height" && r.Method == http.MethodPost:
		h.handleHeight(w, r, tank)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	var req struct {
		DiameterCM  float64 `json:"diameter_cm"`
		MaxHeightCM float64 `json:"max_height_cm"`
		IncrementCM float64 `json:"increment_cm"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	increment := req.IncrementCM
	if increment == 0 {
		increment = h.defaultIncrement
	}

	var (
		table gauging.Table
		err   error
	)
	if req.DiameterCM == 0 && req.MaxHeightCM == 0 {
		table, err = h.service.GenerateTableForTank(r.Context(), tank.ID, increment)
	} else {
		table, err = h.service.GenerateTable(r.Context(), tank.ID, req.DiameterCM, req.MaxHeightCM, increment)
	}
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
	h.logAudit(r, tank, "tank.calibration.generate", map[string]any{
		"diameter_cm":   req.DiameterCM,
		"max_height_cm": req.MaxHeightCM,
		"increment_cm":  increment,
		"entries":       len(table.Entries),
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		report gauging.ImportReport
		err    error
	)
	switch mediaType {
	case contentTypeXLSX:
		report, err = DecodeWorkbook(body)
		if err == nil {
			report, err = h.service.ImportEntries(r.Context(), tank.ID, report)
		}
	case contentTypeCSV, "text/plain", "":
		report, err = h.service.ImportTable(r.Context(), tank.ID, body)
	default:
		http.Error(w, "content type must be text/csv or xlsx", http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
	h.logAudit(r, tank, "tank.calibration.import", map[string]any{
		"format":  mediaType,
		"entries": len(report.Entries),
		"skipped": report.Skipped,
	})
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	data, err := h.service.ExportTable(r.Context(), tank.ID)
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeCSV)
	w.Header().Set("Content-Disposition", "attachment; filename=\"calibration-"+tank.ID+".csv\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	table, err := h.service.Table(r.Context(), tank.ID)
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	data, err := EncodeWorkbook(table.Entries)
	if err != nil {
		h.logger.Error("encode calibration workbook", zap.String("tank_id", tank.ID), zap.Error(err))
		http.Error(w, "workbook rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", "attachment; filename=\"calibration-"+tank.ID+".xlsx\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	validation, err := h.service.ValidateTable(r.Context(), tank.ID)
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Valid bool `json:"valid"`
		gauging.Validation
	}{Valid: validation.Valid(), Validation: validation})
}

func (h *Handler) handleVolume(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	raw := r.URL.Query().Get("height")
	if raw == "" {
		http.Error(w, "height is required", http.StatusBadRequest)
		return
	}
	height, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		http.Error(w, "height must be a number", http.StatusBadRequest)
		return
	}
	volume, err := h.service.LookupVolume(r.Context(), tank.ID, height)
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tank_id":       tank.ID,
		"height_cm":     height,
		"volume_liters": volume,
	})
}

func (h *Handler) handleHeight(w http.ResponseWriter, r *http.Request, tank *masterdata.Tank) {
	var req struct {
		HeightCM *float64 `json:"height_cm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.HeightCM == nil {
		http.Error(w, "height_cm is required", http.StatusBadRequest)
		return
	}
	reading, err := h.service.ApplyHeightReading(r.Context(), tank.ID, *req.HeightCM)
	if err != nil {
		respondGaugingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
	h.logAudit(r, tank, "tank.height.apply", map[string]any{
		"height_cm":    reading.HeightCM,
		"level_liters": reading.LevelLiters,
	})
}

func (h *Handler) logAudit(r *http.Request, tank *masterdata.Tank, action string, meta map[string]any) {
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
		ResourceType:  "tank",
		ResourceID:    tank.ID,
		PointOfSaleID: tank.PointOfSaleID,
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

func respondGaugingError(w http.ResponseWriter, err error) {
	var geometry *gauging.InvalidGeometryError
	var duplicate *gauging.DuplicateHeightError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &geometry), errors.As(err, &duplicate),
		errors.Is(err, gauging.ErrMalformedCalibrationCSV), errors.Is(err, gauging.ErrMissingGeometry):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &tooLarge):
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, gauging.ErrNoCalibrationData), errors.Is(err, gauging.ErrTankNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
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
