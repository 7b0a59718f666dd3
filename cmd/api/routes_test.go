package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callplane/internal/auth"
	"callplane/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected db calls: %v", err)
		}
	})

	r := gin.New()
	registerRoutes(r, deps{
		cfg: config.Config{
			App:  config.AppConfig{RequestTimeout: time.Second},
			Auth: config.AuthConfig{InternalAPIToken: "node-shared-token"},
		},
		db: db,
	})
	return r
}

func TestRegisterRoutes(t *testing.T) {
	r := newTestEngine(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"healthz is public", http.MethodGet, "/healthz", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"internal requires token", http.MethodGet, "/internal/v1/route_info?did=1555", "", http.StatusUnauthorized},
		{"wrong token", http.MethodGet, "/internal/v1/route_info?did=1555", "nope", http.StatusUnauthorized},
		{"blank did rejected before lookup", http.MethodGet, "/internal/v1/route_info?did=%20", "node-shared-token", http.StatusBadRequest},
		{"slots need redis", http.MethodPost, "/internal/v1/links/7/slots", "node-shared-token", http.StatusNotImplemented},
		{"unknown route", http.MethodGet, "/internal/v1/nope", "node-shared-token", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set(auth.HeaderInternalToken, tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("%s %s -> %d, want %d (%s)", tc.method, tc.path, w.Code, tc.want, w.Body.String())
			}
		})
	}
}
