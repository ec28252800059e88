package main

import (
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"testing"
)

func TestRegisterProxy_RoutesPrefixAndSubpaths(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	backendURL, err := url.Parse(backend.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(backendURL)

	mux := http.NewServeMux()
	registerProxy(mux, "/api/v1/public", proxy)

	for _, path := range []string{"/api/v1/public", "/api/v1/public/book", "/api/v1/public/slots"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != http.StatusOK {
			t.Fatalf("path %s: status = %d", path, rw.Code)
		}
		if got := rw.Header().Get("X-Backend-Path"); got != path {
			t.Fatalf("path %s proxied to %q", path, got)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/other", nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("unregistered path: status = %d", rw.Code)
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" a, b ,, c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v", got)
	}
	if got := parseList(""); len(got) != 0 {
		t.Fatalf("empty input: got %v", got)
	}
}

func TestIsTruthy(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !isTruthy(s) {
			t.Fatalf("%q should be truthy", s)
		}
	}
	for _, s := range []string{"", "0", "false", "off"} {
		if isTruthy(s) {
			t.Fatalf("%q should be falsy", s)
		}
	}
}
