package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(testService(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandlerLogin(t *testing.T) {
	h := testHandler(t)

	body := strings.NewReader(`{"member": "matteo", "secret": "segretissimo"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Member != "matteo" || resp.Token == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("expected a session cookie on login")
	}
}

func TestHandlerLogin_BadCredentials(t *testing.T) {
	h := testHandler(t)

	body := strings.NewReader(`{"member": "matteo", "secret": "sbagliato"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandlerLogin_MissingFields(t *testing.T) {
	h := testHandler(t)

	for _, body := range []string{`{}`, `{"member": "matteo"}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		h.Login(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHandlerLogout(t *testing.T) {
	h := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
