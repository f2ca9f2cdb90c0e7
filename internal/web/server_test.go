package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/planos/internal/config"
	"github.com/JonMunkholm/planos/internal/core"
	"github.com/JonMunkholm/planos/internal/flatfile"
	"github.com/JonMunkholm/planos/internal/source"
)

const (
	cashCSV = "SAP;Fecha Terminación. (Digite);DESCUADRES DE CAJA PARA DESCONTAR\n" +
		"12345;08/07/2025;1500\n" +
		"22222;;0\n"
	benefitsCSV = "N° Sap ;Terminación;Descontar;Pagar;PEOPLE\n" +
		"777 ;;;2,500;\n" +
		"888;2025-07-01;100;;40\n"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, RequestTimeout: 10 * time.Second, ShutdownTimeout: time.Second},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, MaxMemory: 1 << 20, Timeout: time.Minute, MaxConcurrent: 2, MaxWait: time.Second},
		Extract:  config.ExtractConfig{ThousandsSeparator: ",", DecimalSeparator: ".", DateLayout: "02.01.2006"},
		Output:   config.OutputConfig{Dir: ".", Format: "xlsx", Timestamp: false},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	svc := core.NewService(cfg.Settings(), core.NewMetrics(reg))
	s := NewServer(svc, cfg, reg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// extractRequest builds a multipart POST carrying the given files.
// A file with empty content is left out of the form.
func extractRequest(t *testing.T, query string, files map[string][2]string) *http.Request {
	t.Helper()
	return uploadRequest(t, "/api/extract", query, files)
}

func uploadRequest(t *testing.T, target, query string, files map[string][2]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, f := range files {
		if f[1] == "" {
			continue
		}
		part, err := mw.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func bothFiles() map[string][2]string {
	return map[string][2]string{
		"cash":     {"caja.csv", cashCSV},
		"benefits": {"bigpass.csv", benefitsCSV},
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListRules(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rules []core.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 4)
	assert.Equal(t, core.ConceptCashShortfall, rules[0].Concept)
	assert.Equal(t, core.ConceptPeople, rules[3].Concept)
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	body := rec.Body.String()
	assert.Contains(t, body, `action="/api/extract"`)
	assert.Contains(t, body, `name="cash"`)
	assert.Contains(t, body, `name="benefits"`)
	assert.Contains(t, body, "Y608")
	assert.Contains(t, body, `value="xlsx" checked`)
}

func TestExtract_CSVDownload(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, extractRequest(t, "format=csv", bothFiles()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="archivo_plano.csv"`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	want := "\xEF\xBB\xBF" +
		"SAP;FECHA;CONCEPTO;VALOR\n" +
		"12345;08.07.2025;Z498;1500\n" +
		"888;01.07.2025;Z609;100\n" +
		"777;;Y602;2500\n" +
		"888;01.07.2025;Y608;40\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestExtract_XLSXDefault(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, extractRequest(t, "", bothFiles()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, flatfile.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))

	ds, err := source.Read(context.Background(), "archivo_plano.xlsx", rec.Body)
	require.NoError(t, err)
	records, err := flatfile.ParseRecords(ds)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, core.Record{EmployeeID: "12345", Date: "08.07.2025", Concept: core.ConceptCashShortfall, Amount: 1500}, records[0])
}

func TestExtract_Timestamp(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, extractRequest(t, "format=csv&timestamp=true", bothFiles()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `filename="archivo_plano_\d{8}_\d{6}\.csv"`, rec.Header().Get("Content-Disposition"))
}

func TestExtract_Summary(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, extractRequest(t, "summary=true&format=csv", bothFiles()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RunID    string `json:"run_id"`
		Outcome  string `json:"outcome"`
		FileName string `json:"file_name"`
		Records  int    `json:"records"`
		Stats    struct {
			Rules []struct {
				Concept     string `json:"concept"`
				RecordCount int    `json:"recordCount"`
				TotalAmount int64  `json:"totalAmount"`
			} `json:"rules"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "ok", resp.Outcome)
	assert.Equal(t, "archivo_plano.csv", resp.FileName)
	assert.Equal(t, 4, resp.Records)
	require.Len(t, resp.Stats.Rules, 4)
	assert.Equal(t, "Y602", resp.Stats.Rules[2].Concept)
	assert.Equal(t, int64(2500), resp.Stats.Rules[2].TotalAmount)
}

func TestExtract_DateLayout(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, extractRequest(t, "format=csv&date_layout=2006-01-02", bothFiles()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "12345;2025-07-08;Z498;1500\n")
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		files      map[string][2]string
		wantStatus int
		wantCode   string
	}{
		{
			name:  "empty result",
			query: "format=csv",
			files: map[string][2]string{
				"cash":     {"caja.csv", "SAP;DESCUADRES DE CAJA PARA DESCONTAR\n1;0\n"},
				"benefits": {"bigpass.csv", "N° Sap ;Pagar\n2;-5\n"},
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "EMPTY001",
		},
		{
			name: "unreadable workbook",
			files: map[string][2]string{
				"cash":     {"caja.xlsx", "this is not a workbook"},
				"benefits": {"bigpass.csv", benefitsCSV},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name:       "missing benefits",
			files:      map[string][2]string{"cash": {"caja.csv", cashCSV}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name:       "unknown format",
			query:      "format=pdf",
			files:      bothFiles(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL001",
		},
		{
			name:       "bad timestamp",
			query:      "timestamp=maybe",
			files:      bothFiles(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL001",
		},
		{
			name:       "bad date layout",
			query:      "date_layout=yyyy",
			files:      bothFiles(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())

			rec := serve(s, extractRequest(t, tt.query, tt.files))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestExtract_NotMultipart(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestExtract_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	files := map[string][2]string{
		"cash":     {"caja.csv", cashCSV},
		"benefits": {"bigpass.csv", benefitsCSV},
	}
	rec := serve(s, extractRequest(t, "", files))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/api/preview", "", bothFiles()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	var p core.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 4, p.Records)
	assert.Equal(t, core.OutcomeOK, p.Outcome)
	require.Len(t, p.Rules, 4)
	assert.Equal(t, 1, p.Rules[0].Qualifying)
	assert.Equal(t, 1, p.Rules[0].Filtered[core.ReasonNotPositive])
	assert.Len(t, p.Sample, 4)
}

func TestPreview_EmptyIsReport(t *testing.T) {
	s := newTestServer(t, testConfig())

	files := map[string][2]string{
		"cash":     {"caja.csv", "SAP;DESCUADRES DE CAJA PARA DESCONTAR\n1;0\n"},
		"benefits": {"bigpass.csv", "N° Sap ;Pagar\n2;-5\n"},
	}
	rec := serve(s, uploadRequest(t, "/api/preview", "", files))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p core.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, core.OutcomeEmpty, p.Outcome)
	assert.Zero(t, p.Records)
}

func TestPreview_MissingFile(t *testing.T) {
	s := newTestServer(t, testConfig())

	files := map[string][2]string{"cash": {"caja.csv", cashCSV}}
	rec := serve(s, uploadRequest(t, "/api/preview", "", files))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestPreview_NoMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "/api/preview", "", bothFiles())).Code)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), `planos_runs_total{outcome="ok"}`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())

	require.Equal(t, http.StatusOK, serve(s, extractRequest(t, "format=csv", bothFiles())).Code)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `planos_runs_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `planos_records_total{concept="Z498"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s := newTestServer(t, cfg)

	get := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
		req.RemoteAddr = ip + ":5000"
		return serve(s, req)
	}

	assert.Equal(t, http.StatusOK, get("192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, get("192.0.2.1").Code)

	rec := get("192.0.2.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"), "one token refills every 30s at 2/min")
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	assert.Equal(t, http.StatusOK, get("192.0.2.2").Code, "limits are per client")
}

func TestRespondError_HTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	respondError(rec, req, core.ErrNoFile, http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "FILE004")
}

func TestExtract_BrowserFormGetsHTML(t *testing.T) {
	s := newTestServer(t, testConfig())

	files := map[string][2]string{"cash": {"caja.csv", cashCSV}}
	req := extractRequest(t, "", files)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	rec := serve(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<!doctype html>")
	assert.Contains(t, body, `role="alert"`)
	assert.Contains(t, body, "FILE004")
	assert.Contains(t, body, `href="/"`)
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
		want   bool
	}{
		{"api default", "/api/extract", "", true},
		{"api wildcard", "/api/extract", "*/*", true},
		{"api from browser", "/api/extract", "text/html,application/xhtml+xml", false},
		{"explicit json wins", "/api/extract", "application/json, text/html", true},
		{"page", "/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, wantsJSON(req))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{source.ErrUnreadableSource, http.StatusBadRequest},
		{core.ErrNoFile, http.StatusBadRequest},
		{core.ErrEmptyResult, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
