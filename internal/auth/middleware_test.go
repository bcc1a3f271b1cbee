package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

func serve(t *testing.T, secret []byte, method, path, token string) (*httptest.ResponseRecorder, Identity) {
	t.Helper()
	var seen Identity
	mw := NewMiddleware(secret, NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil), nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp, seen
}

func mustToken(t *testing.T, secret []byte, tenantID string, role Role) string {
	t.Helper()
	token, err := IssueJWT(secret, Identity{TenantID: tenantID, Role: role, Subject: "user-1"}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	resp, _ := serve(t, []byte("test-secret"), http.MethodPost, "/api/v1/shift-closures", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	resp, _ := serve(t, []byte("test-secret"), http.MethodGet, "/healthz", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerCannotCloseShift(t *testing.T) {
	secret := []byte("test-secret")
	resp, _ := serve(t, secret, http.MethodPost, "/api/v1/shift-closures", mustToken(t, secret, "tenant-a", RoleViewer))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperatorClosesShift(t *testing.T) {
	secret := []byte("test-secret")
	resp, identity := serve(t, secret, http.MethodPost, "/api/v1/shift-closures", mustToken(t, secret, "tenant-a", RoleOperator))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if identity.TenantID != "tenant-a" || identity.Role != RoleOperator || identity.Subject != "user-1" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestAuthMiddleware_ExportNeedsAdmin(t *testing.T) {
	secret := []byte("test-secret")
	resp, _ := serve(t, secret, http.MethodGet, "/api/v1/shift-closures/c-1/export.pdf", mustToken(t, secret, "tenant-a", RoleOperator))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestPolicy_TankRoutes(t *testing.T) {
	policy := NewDefaultPolicy(nil, nil)
	cases := []struct {
		method string
		path   string
		want   Role
	}{
		{http.MethodGet, "/api/v1/tanks/t-1/volume", RoleViewer},
		{http.MethodGet, "/api/v1/tanks/t-1/calibration.csv", RoleViewer},
		{http.MethodPut, "/api/v1/tanks/t-1/calibration", RoleAdmin},
		{http.MethodPost, "/api/v1/tanks/t-1/calibration/generate", RoleAdmin},
		{http.MethodPost, "/api/v1/tanks/t-1/height", RoleOperator},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		got, ok := policy.RequiredRole(req)
		if !ok || got != tc.want {
			t.Fatalf("%s %s: expected %s, got %s", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestParseJWT_RejectsWrongSecret(t *testing.T) {
	token := mustToken(t, []byte("one"), "tenant-a", RoleAdmin)
	if _, err := ParseJWT(token, []byte("two")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

type posRepo map[string]masterdata.PointOfSale

func (r posRepo) GetPointOfSale(_ context.Context, id string) (*masterdata.PointOfSale, error) {
	pos, ok := r[id]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (r posRepo) SavePointOfSale(context.Context, *masterdata.PointOfSale) error { return nil }

func TestPointOfSaleChecker(t *testing.T) {
	checker := NewPointOfSaleChecker(posRepo{"pos-1": {ID: "pos-1", TenantID: "tenant-a"}})
	ctx := context.Background()
	if err := checker.EnsurePointOfSaleTenant(ctx, "tenant-a", "pos-1"); err != nil {
		t.Fatalf("expected owner to pass, got %v", err)
	}
	if err := checker.EnsurePointOfSaleTenant(ctx, "tenant-b", "pos-1"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
	if err := checker.EnsurePointOfSaleTenant(ctx, "tenant-a", "pos-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPointOfSaleCheckerRejectsClosedPointOfSale(t *testing.T) {
	checker := NewPointOfSaleChecker(posRepo{
		"pos-1": {ID: "pos-1", TenantID: "tenant-a"},
		"pos-2": {ID: "pos-2", TenantID: "tenant-a", Active: true},
	})
	ctx := context.Background()
	if err := checker.EnsurePointOfSaleTenant(ctx, "tenant-a", "pos-1"); err != nil {
		t.Fatalf("expected closed point of sale to stay readable, got %v", err)
	}
	if err := checker.EnsurePointOfSaleOpen(ctx, "tenant-a", "pos-1"); !errors.Is(err, ErrPointOfSaleInactive) {
		t.Fatalf("expected ErrPointOfSaleInactive, got %v", err)
	}
	if err := checker.EnsurePointOfSaleOpen(ctx, "", "pos-1"); !errors.Is(err, ErrPointOfSaleInactive) {
		t.Fatalf("expected ErrPointOfSaleInactive without tenant, got %v", err)
	}
	if err := checker.EnsurePointOfSaleOpen(ctx, "tenant-b", "pos-2"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
	if err := checker.EnsurePointOfSaleOpen(ctx, "tenant-a", "pos-2"); err != nil {
		t.Fatalf("expected open point of sale to pass, got %v", err)
	}
}
