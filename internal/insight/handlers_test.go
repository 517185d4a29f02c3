package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbHall/hydrosim/pkg/growth"
)

func TestRoutes(t *testing.T) {
	m := New()
	want := map[string]bool{
		"POST /sessions":               true,
		"GET /sessions/{id}":           true,
		"DELETE /sessions/{id}":        true,
		"GET /sessions/{id}/data":      true,
		"POST /sessions/{id}/forecast": true,
		"POST /sample/forecast":        true,
		"GET /ranges":                  true,
		"GET /policy":                  true,
	}
	routes := m.Routes()
	if len(routes) != len(want) {
		t.Fatalf("got %d routes, want %d", len(routes), len(want))
	}
	for _, r := range routes {
		if !want[r.Method+" "+r.Path] {
			t.Errorf("unexpected route %s %s", r.Method, r.Path)
		}
	}
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp
}

func TestHandleCreateSession_RawCSV(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(growthCSV(10, 0.25)))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	m.handleCreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	resp := decodeSession(t, w)
	if resp.Rows != 40 || resp.UniqueDays != 10 || resp.DefaultHorizon != m.cfg.MaxDay-10 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Stats) != len(growth.Regressors)+1 || len(resp.DailyAverages) != 10 {
		t.Errorf("stats = %d, daily averages = %d", len(resp.Stats), len(resp.DailyAverages))
	}
	if resp.Outliers == nil {
		t.Error("outliers must be an empty slice, not nil")
	}
	if !m.HasSession(resp.ID) {
		t.Error("session was not stored")
	}
}

func TestHandleCreateSession_Multipart(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "tray-3.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(growthCSV(4, 0.25))); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	m := newTestModule(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	m.handleCreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if resp := decodeSession(t, w); resp.Source != "tray-3.csv" || resp.UniqueDays != 4 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleCreateSession_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		maxBytes    int64
		status      int
	}{
		{name: "missing column", contentType: "text/csv", body: "day,time,LeafCount\n1,0.00,3\n", status: http.StatusBadRequest},
		{name: "empty body", contentType: "text/csv", body: "", status: http.StatusBadRequest},
		{name: "multipart without file", contentType: "multipart/form-data; boundary=x", body: "--x--\r\n", status: http.StatusBadRequest},
		{name: "unsupported media", contentType: "application/json", body: "{}", status: http.StatusUnsupportedMediaType},
		{name: "too large", contentType: "text/csv", body: growthCSV(10, 0.25), maxBytes: 64, status: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newTestModule(t, nil)
			if tt.maxBytes > 0 {
				m.cfg.MaxUploadBytes = tt.maxBytes
			}
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			m.handleCreateSession(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestHandleSessionLifecycle(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(3, 0.25))

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+sess.ID, nil)
	req.SetPathValue("id", sess.ID)
	w := httptest.NewRecorder()
	m.handleGetSession(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if resp := decodeSession(t, w); resp.ID != sess.ID || resp.Rows != 12 {
		t.Errorf("get response = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+sess.ID+"/data", nil)
	req.SetPathValue("id", sess.ID)
	w = httptest.NewRecorder()
	m.handleExportSession(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("export Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 13 || !strings.HasPrefix(lines[0], growth.ColumnDatetime) {
		t.Errorf("export has %d lines, header %q", len(lines), lines[0])
	}

	req = httptest.NewRequest(http.MethodDelete, "/sessions/"+sess.ID, nil)
	req.SetPathValue("id", sess.ID)
	w = httptest.NewRecorder()
	m.handleDeleteSession(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	for _, h := range []http.HandlerFunc{m.handleGetSession, m.handleDeleteSession, m.handleExportSession} {
		req = httptest.NewRequest(http.MethodGet, "/sessions/"+sess.ID, nil)
		req.SetPathValue("id", sess.ID)
		w = httptest.NewRecorder()
		h(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("after delete status = %d, want 404", w.Code)
		}
	}
}

func TestHandleForecast(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(10, 0.25))

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{name: "empty body uses defaults", id: sess.ID, status: http.StatusOK},
		{name: "explicit options", id: sess.ID, body: `{"periods":7,"weight_grams":100,"optimality_window":"forecast"}`, status: http.StatusOK},
		{name: "unknown field", id: sess.ID, body: `{"days":7}`, status: http.StatusBadRequest},
		{name: "malformed json", id: sess.ID, body: `{`, status: http.StatusBadRequest},
		{name: "horizon too long", id: sess.ID, body: `{"periods":400}`, status: http.StatusBadRequest},
		{name: "unknown weight", id: sess.ID, body: `{"weight_grams":3}`, status: http.StatusBadRequest},
		{name: "pretrained unavailable", id: sess.ID, body: `{"mode":"pretrained"}`, status: http.StatusServiceUnavailable},
		{name: "unknown session", id: "missing", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sessions/"+tt.id+"/forecast", strings.NewReader(tt.body))
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()
			m.handleForecast(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var res ForecastResult
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatal(err)
			}
			if res.SessionID != sess.ID || len(res.Forecast) != res.Periods {
				t.Errorf("result session = %s, periods = %d, rows = %d", res.SessionID, res.Periods, len(res.Forecast))
			}
		})
	}
}

func TestHandleForecast_InsufficientData(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(1, 0.25))
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/forecast", nil)
	req.SetPathValue("id", sess.ID)
	w := httptest.NewRecorder()
	m.handleForecast(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestHandleSampleForecast(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	w := httptest.NewRecorder()
	m.handleSampleForecast(w, httptest.NewRequest(http.MethodPost, "/sample/forecast", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured status = %d, want 503", w.Code)
	}

	m.cfg.SampleData = writeSample(t, t.TempDir())
	w = httptest.NewRecorder()
	m.handleSampleForecast(w, httptest.NewRequest(http.MethodPost, "/sample/forecast", strings.NewReader(`{"periods":5}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res ForecastResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Forecast) != 5 || !m.HasSession(res.SessionID) {
		t.Errorf("rows = %d, session stored = %v", len(res.Forecast), m.HasSession(res.SessionID))
	}
}

func TestHandleRanges(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestModule(t, nil).handleRanges(w, httptest.NewRequest(http.MethodGet, "/ranges", nil))
	var ranges []RangeResponse
	if err := json.NewDecoder(w.Body).Decode(&ranges); err != nil {
		t.Fatal(err)
	}
	if len(ranges) == 0 || ranges[0].Regressor != growth.Temperature {
		t.Fatalf("ranges = %+v, want temperature first", ranges)
	}
	for _, r := range ranges {
		if r.Lower > r.Upper {
			t.Errorf("%s band is inverted: %+v", r.Regressor, r)
		}
	}
}

func TestHandlePolicy(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	w := httptest.NewRecorder()
	m.handlePolicy(w, httptest.NewRequest(http.MethodGet, "/policy", nil))
	var resp PolicyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.HorizonMin != m.cfg.Horizon.Min || resp.MaxDay != m.cfg.MaxDay || resp.Anchor != "2024-07-01" {
		t.Errorf("policy = %+v", resp)
	}
	if len(resp.Weights) != len(m.cfg.CapTable) {
		t.Fatalf("weights = %+v", resp.Weights)
	}
	for i := 1; i < len(resp.Weights); i++ {
		if resp.Weights[i-1].Grams >= resp.Weights[i].Grams {
			t.Errorf("weights not ascending: %+v", resp.Weights)
		}
	}
}

func TestWriteError_ProblemType(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusUnprocessableEntity, "short")
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["type"] != "https://hydrosim.dev/problems/unprocessable-entity" {
		t.Errorf("type = %v", body["type"])
	}
	if body["detail"] != "short" {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestWriteFailure_CanceledHasStatus(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	w := httptest.NewRecorder()
	err := fmt.Errorf("fit stage: %w", context.Canceled)
	m.writeFailure(w, httptest.NewRequest(http.MethodPost, "/sessions/x/forecast", nil), err)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}
