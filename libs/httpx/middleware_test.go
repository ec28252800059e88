package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireBearer(t *testing.T) {
	called := false
	h := RequireBearer("s3cret", func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name   string
		header string
		secret bool
		status int
	}{
		{name: "valid token", header: "Bearer s3cret", status: http.StatusOK},
		{name: "wrong token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic s3cret", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			h(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if (tc.status == http.StatusOK) != called {
				t.Fatalf("handler called = %v, want %v", called, tc.status == http.StatusOK)
			}
		})
	}
}

func TestRequireBearer_EmptySecretRejects(t *testing.T) {
	h := RequireBearer("", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	h(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with empty secret, got %d", rec.Code)
	}
}
