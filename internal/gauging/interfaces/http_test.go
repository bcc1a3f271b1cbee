package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fuel-backoffice/internal/audit"
	"fuel-backoffice/internal/auth"
	gaugingapp "fuel-backoffice/internal/gauging/application"
	gauging "fuel-backoffice/internal/gauging/domain"
	calibrationmemory "fuel-backoffice/internal/gauging/infrastructure/memory"
	masterdata "fuel-backoffice/internal/masterdata/domain"
	masterdatamemory "fuel-backoffice/internal/masterdata/infrastructure/memory"
)

type memoryAudit struct {
	mu      sync.Mutex
	actions []string
}

func (m *memoryAudit) Log(_ context.Context, entry audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, entry.Action)
	return nil
}

func newTankHandler(t *testing.T) (*Handler, *masterdatamemory.Store, *memoryAudit) {
	t.Helper()
	ctx := context.Background()
	store := masterdatamemory.NewStore()
	if err := store.SavePointOfSale(ctx, &masterdata.PointOfSale{ID: "pos-1", TenantID: "tenant-a", Name: "Ruta 5", Active: true}); err != nil {
		t.Fatalf("save pos: %v", err)
	}
	if err := store.SaveTank(ctx, &masterdata.Tank{
		ID: "tank-1", PointOfSaleID: "pos-1", ProductCode: "DIESEL",
		CapacityLiters: 9000, LevelLiters: 4000, DiameterCM: 200, MaxHeightCM: 300,
	}); err != nil {
		t.Fatalf("save tank: %v", err)
	}
	service, err := gaugingapp.NewGaugingService(calibrationmemory.NewCalibrationRepository(), store)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	log := &memoryAudit{}
	handler, err := NewHandler(service, store, auth.NewPointOfSaleChecker(store), log)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, store, log
}

func serve(h http.Handler, tenant, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{TenantID: tenant, Role: auth.RoleAdmin, Subject: "ana"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateFromTankGeometryThenLookup(t *testing.T) {
	h, _, log := newTankHandler(t)
	rec := serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/calibration/generate", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var table gauging.Table
	if err := json.NewDecoder(rec.Body).Decode(&table); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(table.Entries) != 301 || table.Provenance != gauging.ProvenanceGenerated {
		t.Fatalf("unexpected table: %d entries, provenance %s", len(table.Entries), table.Provenance)
	}

	volume := serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/tank-1/volume?height=50.5", "", nil)
	var out struct {
		VolumeLiters float64 `json:"volume_liters"`
	}
	if err := json.NewDecoder(volume.Body).Decode(&out); err != nil {
		t.Fatalf("decode volume: %v", err)
	}
	if math.Abs(out.VolumeLiters-1586.50) > 0.01 {
		t.Fatalf("expected about 1586.50 L, got %v", out.VolumeLiters)
	}
	if rec := serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/tank-1/volume?height=-50", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative height, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(log.actions) != 1 || log.actions[0] != "tank.calibration.generate" {
		t.Fatalf("unexpected audit actions %v", log.actions)
	}
}

func TestImportCSVAndExportBothFormats(t *testing.T) {
	h, _, _ := newTankHandler(t)
	csvBody := []byte("Height;Volume\n0;0\n10;314,16\nbad;1\n20;628,32\n")
	rec := serve(h, "tenant-a", http.MethodPut, "/api/v1/tanks/tank-1/calibration", "text/csv; charset=utf-8", csvBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report gauging.ImportReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Entries) != 3 || report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	exported := serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/tank-1/calibration.csv", "", nil)
	if got := exported.Body.String(); got != "height,volume\n0,0\n10,314.16\n20,628.32\n" {
		t.Fatalf("unexpected csv export %q", got)
	}

	workbook := serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/tank-1/calibration.xlsx", "", nil)
	if workbook.Code != http.StatusOK {
		t.Fatalf("expected 200 for xlsx, got %d", workbook.Code)
	}
	decoded, err := DecodeWorkbook(bytes.NewReader(workbook.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode workbook: %v", err)
	}
	if len(decoded.Entries) != 3 || decoded.Entries[2].VolumeLiters != 628.32 {
		t.Fatalf("unexpected workbook entries %+v", decoded.Entries)
	}
}

func TestImportWorkbook(t *testing.T) {
	h, _, _ := newTankHandler(t)
	data, err := EncodeWorkbook([]gauging.Entry{{HeightCM: 0, VolumeLiters: 0}, {HeightCM: 5, VolumeLiters: 157.08}})
	if err != nil {
		t.Fatalf("encode workbook: %v", err)
	}
	rec := serve(h, "tenant-a", http.MethodPut, "/api/v1/tanks/tank-1/calibration", contentTypeXLSX, data)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	validate := serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/tank-1/calibration/validate", "", nil)
	var validation struct {
		Valid    bool     `json:"valid"`
		Warnings []string `json:"warnings"`
	}
	if err := json.NewDecoder(validate.Body).Decode(&validation); err != nil {
		t.Fatalf("decode validation: %v", err)
	}
	if !validation.Valid || len(validation.Warnings) == 0 {
		t.Fatalf("expected valid table with warnings (ends below tank height), got %+v", validation)
	}
}

func TestImportRejectsMalformedCSV(t *testing.T) {
	h, _, _ := newTankHandler(t)
	rec := serve(h, "tenant-a", http.MethodPut, "/api/v1/tanks/tank-1/calibration", "text/csv", []byte("depth,liters\n1,2\n"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = serve(h, "tenant-a", http.MethodPut, "/api/v1/tanks/tank-1/calibration", "application/json", []byte("{}"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestHeightReadingUpdatesLevel(t *testing.T) {
	h, store, _ := newTankHandler(t)
	if rec := serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/height", "", []byte(`{"height_cm":100}`)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without calibration, got %d", rec.Code)
	}
	serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/calibration/generate", "", nil)

	rec := serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/height", "", []byte(`{"height_cm":100}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	tank, err := store.GetTank(context.Background(), "tank-1")
	if err != nil {
		t.Fatalf("get tank: %v", err)
	}
	if math.Abs(tank.LevelLiters-3141.59) > 0.01 {
		t.Fatalf("expected level 3141.59, got %v", tank.LevelLiters)
	}
	if rec := serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/height", "", []byte(`{}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing height, got %d", rec.Code)
	}
}

func TestClosedPointOfSaleRejectsHeightReadings(t *testing.T) {
	h, store, _ := newTankHandler(t)
	ctx := context.Background()
	serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/calibration/generate", "", nil)
	pos, _ := store.GetPointOfSale(ctx, "pos-1")
	pos.Active = false
	if err := store.SavePointOfSale(ctx, pos); err != nil {
		t.Fatalf("save pos: %v", err)
	}
	if rec := serve(h, "tenant-a", http.MethodPost, "/api/v1/tanks/tank-1/height", "", []byte(`{"height_cm":100}`)); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/tank-1/volume?height=100", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected volume lookup to stay available, got %d", rec.Code)
	}
	tank, _ := store.GetTank(ctx, "tank-1")
	if tank.LevelLiters != 4000 {
		t.Fatalf("level changed to %v", tank.LevelLiters)
	}
}

func TestTankRoutesEnforceTenant(t *testing.T) {
	h, _, _ := newTankHandler(t)
	rec := serve(h, "tenant-b", http.MethodGet, "/api/v1/tanks/tank-1/calibration.csv", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = serve(h, "tenant-a", http.MethodGet, "/api/v1/tanks/missing/calibration.csv", "", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not found") {
		t.Fatalf("expected 404 for unknown tank, got %d", rec.Code)
	}
}
