package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLoggerPassesThrough(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestResponseWriterWrapperCountsBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriterWrapper{ResponseWriter: rec, statusCode: http.StatusOK}

	ww.WriteHeader(http.StatusCreated)
	_, _ = ww.Write([]byte("hello"))
	_, _ = ww.Write([]byte(" county"))

	if ww.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want 201", ww.statusCode)
	}
	if ww.written != int64(len("hello county")) {
		t.Errorf("written = %d, want %d", ww.written, len("hello county"))
	}
}

func TestResponseWriterWrapperDefaultsToOK(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("implicit 200"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
