package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var res result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestHealthz(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if res := decodeResult(t, rec); res.Status != "ok" {
		t.Fatalf("status field = %q, want ok", res.Status)
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadyz_AllPass(t *testing.T) {
	h := New(
		Checker{Name: "backend", Check: func(context.Context) error { return nil }},
		Checker{Name: "tts", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Status != "ok" {
		t.Fatalf("status field = %q", res.Status)
	}
	if len(res.Checks) != 2 {
		t.Fatalf("checks = %+v, want two entries", res.Checks)
	}
	for name, cr := range res.Checks {
		if cr.Status != "ok" {
			t.Errorf("check %s status = %q", name, cr.Status)
		}
		if cr.Duration == "" {
			t.Errorf("check %s missing duration", name)
		}
	}
}

func TestReadyz_FailingChecker(t *testing.T) {
	h := New(
		Checker{Name: "backend", Check: func(context.Context) error { return nil }},
		Checker{Name: "tts", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Status != "fail" {
		t.Fatalf("status field = %q, want fail", res.Status)
	}
	if res.Checks["backend"].Status != "ok" {
		t.Errorf("backend check = %+v, want ok", res.Checks["backend"])
	}
	if got := res.Checks["tts"]; got.Status != "fail" || got.Error != "connection refused" {
		t.Errorf("tts check = %+v", got)
	}
}

func TestReadyz_CheckerReceivesDeadline(t *testing.T) {
	var hadDeadline bool
	h := New(Checker{Name: "backend", Check: func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if !hadDeadline {
		t.Fatal("checker context has no deadline")
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
