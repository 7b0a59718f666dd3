package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callplane/internal/calls"
	"callplane/internal/catalog"
	"callplane/internal/reporting"
	"callplane/internal/routing"

	"github.com/gin-gonic/gin"
)

func intp(v int) *int { return &v }

type fixture struct {
	router  *gin.Engine
	store   *routing.MemoryStore
	ledger  *calls.MemoryRepo
	reports *reporting.MemoryRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := routing.NewMemoryStore()
	store.PutUser(catalog.User{ID: 1, Status: catalog.StatusActive})
	store.PutDID(catalog.DID{ID: 10, Number: "+15551234567", UserID: 1, Status: catalog.StatusActive})
	store.PutCampaign(catalog.Campaign{ID: 100, UserID: 1, Name: "main", Status: catalog.StatusActive, RoutingStrategy: catalog.StrategyPriority, DialTimeoutSeconds: 30})
	store.LinkDID(100, 10)
	store.PutClient(catalog.Client{ID: 7, Identifier: "c-7", Name: "Seven", Status: catalog.StatusActive}, &catalog.OutboundContact{URI: "sip:seven@example.net"})
	store.PutClient(catalog.Client{ID: 8, Identifier: "c-8", Name: "Eight", Status: catalog.StatusActive}, &catalog.OutboundContact{URI: "sip:eight@example.net"})
	store.PutLink(catalog.Link{ID: 1, CampaignID: 100, ClientID: 7, Status: catalog.StatusActive, MaxConcurrency: 2, TotalCallsAllowed: intp(5), CurrentTotalCalls: 0, ForwardingPriority: 0, Weight: 1})
	store.PutLink(catalog.Link{ID: 2, CampaignID: 100, ClientID: 8, Status: catalog.StatusActive, MaxConcurrency: 1, ForwardingPriority: 1, Weight: 1})

	ledger := calls.NewMemoryRepo()
	ledger.Links[1] = 0
	ledger.Links[2] = 0

	reports := reporting.NewMemoryRepo()

	h := Handlers{
		Resolver: routing.NewResolver(store),
		Recorder: calls.NewRecorder(ledger),
		Reports:  reporting.NewService(reports),
	}
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	v1 := r.Group("/internal/v1")
	v1.GET("/route_info", h.RouteInfo)
	v1.POST("/log_call", h.LogCall)
	v1.GET("/links/:link_id/usage", h.LinkUsage)
	v1.GET("/reports/calls", h.CallsSummary)
	v1.POST("/links/:link_id/slots", h.AcquireSlot)

	return fixture{router: r, store: store, ledger: ledger, reports: reports}
}

func (f fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRouteInfo_Proceed(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/internal/v1/route_info?did=%2B15551234567", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "proceed" {
		t.Fatalf("unexpected body: %v", body)
	}
	info := body["routingInfo"].(map[string]any)
	targets := info["targets"].([]any)
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	first := targets[0].(map[string]any)
	if first["campaignClientSettingId"] != float64(1) || first["sip_uri"] != "sip:seven@example.net" {
		t.Fatalf("unexpected first target: %v", first)
	}
	if v, ok := first["outbound_auth"]; !ok || v != nil {
		t.Fatalf("nullable fields must be present as null, got %v", first)
	}
}

func TestRouteInfo_RejectStatuses(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/internal/v1/route_info?did=%2B10000000000", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decode(t, w); body["rejectReason"] != "did_not_found" || body["status"] != "reject" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = f.do(http.MethodGet, "/internal/v1/route_info", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decode(t, w); body["rejectReason"] != "invalid_did_input" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRouteInfo_StoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("db down")

	w := f.do(http.MethodGet, "/internal/v1/route_info?did=%2B15551234567", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := decode(t, w); body["status"] != "error" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func logBody(ext string, link any) map[string]any {
	return map[string]any{
		"incomingDidNumber":       "+15551234567",
		"timestampStart":          "2026-03-01T12:00:00Z",
		"callStatus":              "ANSWERED",
		"asteriskUniqueid":        ext,
		"userId":                  1,
		"campaignId":              100,
		"didId":                   10,
		"clientId":                7,
		"campaignClientSettingId": link,
		"billsecSeconds":          42,
		"somethingElse":           "ignored",
	}
}

func TestLogCall_RecordThenDuplicate(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/internal/v1/log_call", logBody("abc-1", 1))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "success" || body["message"] != "CDR logged successfully" || body["cdrId"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}
	if f.ledger.Counter(1) != 1 {
		t.Fatalf("expected counter 1, got %d", f.ledger.Counter(1))
	}

	w = f.do(http.MethodPost, "/internal/v1/log_call", logBody("abc-1", 1))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if f.ledger.Counter(1) != 1 {
		t.Fatalf("duplicate must not increment; counter=%d", f.ledger.Counter(1))
	}
}

func TestLogCall_LinkRefAsString(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/internal/v1/log_call", logBody("abc-2", "2"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if f.ledger.Counter(2) != 1 {
		t.Fatalf("expected counter 1, got %d", f.ledger.Counter(2))
	}
}

func TestLogCall_MalformedLinkRefStillRecords(t *testing.T) {
	cases := []struct {
		name string
		link any
	}{
		{"text", "not-a-number"},
		{"decimal string", "1.0"},
		{"bool", true},
		{"object", map[string]any{"id": 1}},
		{"array", []int{1}},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(http.MethodPost, "/internal/v1/log_call", logBody(fmt.Sprintf("bad-link-%d", i), tc.link))
			if w.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
			}
			if f.ledger.Count() != 1 {
				t.Fatalf("expected the call to be recorded, got %d records", f.ledger.Count())
			}
			if f.ledger.Counter(1) != 0 || f.ledger.Counter(2) != 0 {
				t.Fatalf("no counter may move")
			}
		})
	}
}

func TestLogCall_Errors(t *testing.T) {
	cases := []struct {
		name string
		body any
		want int
	}{
		{name: "bad json", body: "{", want: http.StatusBadRequest},
		{name: "missing fields", body: map[string]any{"callStatus": "ANSWERED"}, want: http.StatusBadRequest},
		{name: "bad timestamp", body: map[string]any{"incomingDidNumber": "+1", "timestampStart": "yesterday", "callStatus": "BUSY", "asteriskUniqueid": "x"}, want: http.StatusBadRequest},
		{name: "unknown link", body: logBody("abc-9", 999), want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(http.MethodPost, "/internal/v1/log_call", tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			if body := decode(t, w); body["status"] != "error" {
				t.Fatalf("unexpected body: %v", body)
			}
			if f.ledger.Count() != 0 {
				t.Fatalf("nothing may be persisted")
			}
		})
	}
}

func TestLogCall_ZonelessTimestamp(t *testing.T) {
	f := newFixture(t)
	body := logBody("abc-4", nil)
	body["timestampStart"] = "2026-03-01 12:00:00"
	body["timestampEnd"] = "2026-03-01 12:01:00"

	w := f.do(http.MethodPost, "/internal/v1/log_call", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	rec, ok := f.ledger.Get(1)
	if !ok {
		t.Fatalf("record missing")
	}
	if !rec.StartedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) || rec.EndedAt == nil {
		t.Fatalf("unexpected timestamps: %+v", rec)
	}
	if rec.LinkID != nil {
		t.Fatalf("null link ref must not be stored")
	}
}

func TestLinkUsage(t *testing.T) {
	f := newFixture(t)
	f.reports.Links[1] = catalog.Link{ID: 1, CampaignID: 100, ClientID: 7, Status: catalog.StatusActive, MaxConcurrency: 2, TotalCallsAllowed: intp(5), CurrentTotalCalls: 5}

	w := f.do(http.MethodGet, "/internal/v1/links/1/usage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decode(t, w); body["cap_reached"] != true || body["remaining"] != float64(0) {
		t.Fatalf("unexpected body: %v", body)
	}

	if w := f.do(http.MethodGet, "/internal/v1/links/2/usage", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/internal/v1/links/abc/usage", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallsSummary(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cid := int64(100)
	f.reports.Calls = []calls.CallRecord{
		{ExternalCallID: "a", CampaignID: &cid, Status: calls.CallStatusAnswered, StartedAt: start},
		{ExternalCallID: "b", CampaignID: &cid, Status: calls.CallStatusBusy, StartedAt: start},
	}

	w := f.do(http.MethodGet, "/internal/v1/reports/calls?campaign_id=100&from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["total_calls"] != float64(2) || body["answered_calls"] != float64(1) {
		t.Fatalf("unexpected body: %v", body)
	}

	w = f.do(http.MethodGet, "/internal/v1/reports/calls?from=not-a-time", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = f.do(http.MethodGet, "/internal/v1/reports/calls?from=2026-03-02T00:00:00Z&to=2026-03-01T00:00:00Z", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSlots_NotConfigured(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/internal/v1/links/1/slots", map[string]any{"callId": "c1"})
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := Handlers{Ready: func(ctx context.Context) error { return errors.New("db down") }}
	r.GET("/readyz", h.Readyz)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unavailable") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
