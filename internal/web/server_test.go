package web

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetdiff/internal/config"
	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/sheet"
	"github.com/JonMunkholm/sheetdiff/internal/web/templates"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Compare: config.CompareConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       5 * time.Second,
			ExportFormat:  "xlsx",
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	loader := sheet.Loader{MaxBytes: cfg.Compare.MaxFileSize}
	s := NewServer(core.NewService(loader, cfg.Compare), cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

type upload struct {
	field, name, content string
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, f.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, s *Server, path string, headers map[string]string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

const (
	refCSV = "Name,City\nAlice ,Paris\nBob,Berlin\nBob,Berlin\nCarol,Rome\n"
	subCSV = "name, CITY\nalice,paris\ncarol,ROME\n"
)

func TestHandleCompare_JSON(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doUpload(t, s, "/api/compare", nil,
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.csv", subCSV},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Columns       []string `json:"columns"`
		Rows          [][]any  `json:"rows"`
		Indices       []int    `json:"indices"`
		Count         int      `json:"count"`
		ReferenceRows int      `json:"reference_rows"`
		SubsetRows    int      `json:"subset_rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Count != 2 || got.ReferenceRows != 4 || got.SubsetRows != 2 {
		t.Errorf("counts = %+v", got)
	}
	if len(got.Rows) != 2 || got.Rows[0][0] != "Bob" || got.Rows[1][1] != "Berlin" {
		t.Errorf("rows = %v", got.Rows)
	}
	if strings.Join(got.Columns, ",") != "Name,City" {
		t.Errorf("columns = %v", got.Columns)
	}
}

func TestHandleCompare_SchemaMismatch(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doUpload(t, s, "/api/compare", nil,
		upload{fieldReference, "ref.csv", "a,b\n1,2\n"},
		upload{fieldSubset, "sub.csv", "b,a\n2,1\n"},
	)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var got SchemaErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != "CMP001" {
		t.Errorf("code = %q, want CMP001", got.Code)
	}
	if strings.Join(got.ReferenceColumns, ",") != "a,b" || strings.Join(got.SubsetColumns, ",") != "b,a" {
		t.Errorf("columns = %v / %v", got.ReferenceColumns, got.SubsetColumns)
	}
	if got.Diff.FirstMismatch != 0 {
		t.Errorf("diff = %+v", got.Diff)
	}
}

func TestHandleCompare_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		files      []upload
		wantStatus int
		wantCode   string
		wantDetail []string
	}{
		{
			name:       "missing subset",
			files:      []upload{{fieldReference, "ref.csv", refCSV}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE003",
		},
		{
			name:       "unreadable workbook",
			files:      []upload{{fieldReference, "ref.csv", refCSV}, {fieldSubset, "sub.xlsx", "not a zip"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
			wantDetail: []string{"sub.xlsx", "zip: not a valid zip file"},
		},
		{
			name:       "file named like another error",
			files:      []upload{{fieldReference, "Q3 empty file check.xlsx", "not a zip"}, {fieldSubset, "sub.csv", subCSV}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
			wantDetail: []string{"Q3 empty file check.xlsx", "zip"},
		},
		{
			name:       "empty file",
			files:      []upload{{fieldReference, "ref.csv", refCSV}, {fieldSubset, "sub.csv", "  \n"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name:       "unsupported extension",
			files:      []upload{{fieldReference, "ref.pdf", "%PDF"}, {fieldSubset, "sub.csv", subCSV}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doUpload(t, s, "/api/compare", nil, tt.files...)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v (%s)", err, rec.Body.String())
			}
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			for _, want := range tt.wantDetail {
				if !strings.Contains(got.Detail, want) {
					t.Errorf("detail = %q, want it to mention %q", got.Detail, want)
				}
			}
		})
	}
}

func TestHandleComparePage_ReadErrorDetail(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doUpload(t, s, "/compare", nil,
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.xlsx", "not a zip"},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "FILE002", "sub.xlsx: ", "zip: not a valid zip file"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHandleCompare_NotMultipart(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCompare_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Compare.MaxFileSize = 16
	s := newTestServer(t, cfg)

	rec := doUpload(t, s, "/api/compare", nil,
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.csv", subCSV},
	)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "FILE001") {
		t.Errorf("response = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCompare_HTMXPartial(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doUpload(t, s, "/api/compare", map[string]string{"HX-Request": "true"},
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.csv", subCSV},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if strings.Contains(body, "<html") || !strings.Contains(body, "<table>") || !strings.Contains(body, "Berlin") {
		t.Errorf("partial = %s", body)
	}
}

func TestHandleComparePage(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doUpload(t, s, "/compare", nil,
		upload{fieldReference, "ref.csv", "a\n<script>\n"},
		upload{fieldSubset, "sub.csv", "a\n"},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected a full page")
	}
	if strings.Contains(body, "<script>") || !strings.Contains(body, "&lt;script&gt;") {
		t.Error("cell values must be escaped")
	}
}

func TestHandleComparePage_SchemaError(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doUpload(t, s, "/compare", nil,
		upload{fieldReference, "ref.csv", "id,name\n1,a\n"},
		upload{fieldSubset, "sub.csv", "id,mail\n1,a\n"},
	)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"CMP001", "Only in reference: name", "Only in subset: mail"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHandleExport(t *testing.T) {
	s := newTestServer(t, testConfig())

	t.Run("xlsx", func(t *testing.T) {
		rec := doUpload(t, s, "/api/compare/export?format=xlsx", nil,
			upload{fieldReference, "ref.csv", refCSV},
			upload{fieldSubset, "sub.csv", subCSV},
		)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="missing_rows.xlsx"` {
			t.Errorf("Content-Disposition = %q", got)
		}
		if rec.Header().Get("X-Missing-Rows") != "2" {
			t.Errorf("X-Missing-Rows = %q", rec.Header().Get("X-Missing-Rows"))
		}

		f, err := excelize.OpenReader(rec.Body)
		if err != nil {
			t.Fatalf("open export: %v", err)
		}
		defer f.Close()
		rows, err := f.GetRows("Sheet1")
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 3 || rows[0][0] != "Name" || rows[1][0] != "Bob" {
			t.Errorf("rows = %v", rows)
		}
	})

	t.Run("csv", func(t *testing.T) {
		rec := doUpload(t, s, "/api/compare/export?format=csv", nil,
			upload{fieldReference, "ref.csv", refCSV},
			upload{fieldSubset, "sub.csv", subCSV},
		)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Body.String(); got != "Name,City\nBob,Berlin\nBob,Berlin\n" {
			t.Errorf("body = %q", got)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := doUpload(t, s, "/api/compare/export?format=pdf", nil,
			upload{fieldReference, "ref.csv", refCSV},
			upload{fieldSubset, "sub.csv", subCSV},
		)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleExportPage(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	t.Run("downloads without an api key", func(t *testing.T) {
		rec := doUpload(t, s, "/export?format=csv", nil,
			upload{fieldReference, "ref.csv", refCSV},
			upload{fieldSubset, "sub.csv", subCSV},
		)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if got := rec.Body.String(); got != "Name,City\nBob,Berlin\nBob,Berlin\n" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("errors render as a page", func(t *testing.T) {
		rec := doUpload(t, s, "/export?format=xlsx", nil,
			upload{fieldReference, "ref.csv", "id,name\n1,a\n"},
			upload{fieldSubset, "sub.csv", "id,mail\n1,a\n"},
		)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
			t.Errorf("Content-Type = %q, want html", ct)
		}
		if body := rec.Body.String(); !strings.Contains(body, "<!DOCTYPE html>") || !strings.Contains(body, "CMP001") {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("api route still needs the key", func(t *testing.T) {
		rec := doUpload(t, s, "/api/compare/export?format=csv", nil,
			upload{fieldReference, "ref.csv", refCSV},
			upload{fieldSubset, "sub.csv", subCSV},
		)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

// resultForm extracts the hidden result field from a rendered result view.
func resultForm(t *testing.T, body string) string {
	t.Helper()
	marker := `name="` + templates.ResultField + `" value="`
	start := strings.Index(body, marker)
	if start < 0 {
		t.Fatalf("no download form in %s", body)
	}
	rest := body[start+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		t.Fatal("unterminated value attribute")
	}
	return html.UnescapeString(rest[:end])
}

func TestHandleExportResult(t *testing.T) {
	s := newTestServer(t, testConfig())

	page := doUpload(t, s, "/compare", nil,
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.csv", subCSV},
	)
	if page.Code != http.StatusOK {
		t.Fatalf("compare status = %d", page.Code)
	}
	payload := resultForm(t, page.Body.String())

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/export/result", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		return rec
	}

	t.Run("csv", func(t *testing.T) {
		rec := post(url.Values{templates.ResultField: {payload}, "format": {"csv"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if got := rec.Body.String(); got != "Name,City\nBob,Berlin\nBob,Berlin\n" {
			t.Errorf("body = %q", got)
		}
		if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="missing_rows.csv"` {
			t.Errorf("Content-Disposition = %q", got)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := post(url.Values{templates.ResultField: {payload}, "format": {"xlsx"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		f, err := excelize.OpenReader(rec.Body)
		if err != nil {
			t.Fatalf("open export: %v", err)
		}
		defer f.Close()
		rows, err := f.GetRows("Sheet1")
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 3 || rows[2][1] != "Berlin" {
			t.Errorf("rows = %v", rows)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		rec := post(url.Values{templates.ResultField: {"{not json"}, "format": {"csv"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
			t.Error("expected an error page")
		}
	})
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`name="reference"`, `name="subset"`, "1 MB", "/static/style.css", `formaction="/export?format=xlsx"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers = %v", rec.Header())
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var got struct {
		Status      string             `json:"status"`
		Comparisons core.LimiterStatus `json:"comparisons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" || got.Comparisons.MaxConcurrent != 2 {
		t.Errorf("health = %+v", got)
	}
}

func TestStaticFiles(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "text/css") {
		t.Errorf("response = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := doUpload(t, s, "/api/compare", nil,
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.csv", subCSV},
	)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	rec = doUpload(t, s, "/api/compare", map[string]string{"X-API-Key": "secret"},
		upload{fieldReference, "ref.csv", refCSV},
		upload{fieldSubset, "sub.csv", subCSV},
	)
	if rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rec.Code)
	}
}

func TestCompareRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, CompareLimit: 1}
	s := newTestServer(t, cfg)

	files := []upload{{fieldReference, "ref.csv", refCSV}, {fieldSubset, "sub.csv", subCSV}}
	if rec := doUpload(t, s, "/api/compare", nil, files...); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := doUpload(t, s, "/api/compare", nil, files...); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"schema", &core.SchemaMismatchError{}, http.StatusUnprocessableEntity},
		{"busy", core.ErrTooManyComparisons, http.StatusServiceUnavailable},
		{"no file", core.ErrNoFile, http.StatusBadRequest},
		{"read", &core.ReadError{Source: "x", Err: io.ErrUnexpectedEOF}, http.StatusBadRequest},
		{"body limit", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"unknown", io.ErrClosedPipe, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
