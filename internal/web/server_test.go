package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataport/internal/config"
	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/export"
	"github.com/JonMunkholm/dataport/internal/registry"
	"github.com/JonMunkholm/dataport/internal/session"
	"github.com/JonMunkholm/dataport/internal/storage"
)

const (
	adminKey = "admin-key"
	teamKey  = "team-key"
)

const sampleCSV = "name,qty\nA,1\nB,2\nA,1\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Security: config.SecurityConfig{
			APIKeys:       []string{adminKey + ":alice:super_admin", teamKey + ":bob:team"},
			RequireAPIKey: true,
			EnableCSP:     true,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	svc, err := core.NewService(core.Deps{
		Sessions: session.NewCache(session.NewMemoryStore(), session.NewMemoryBlobs(), time.Hour),
		Registry: registry.NewMemory(),
		Files:    files,
		Encoders: export.Encoders(),
		Template: export.WriteTemplate,
	})
	require.NoError(t, err)

	srv, err := NewServer(svc, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request, key string) *httptest.ResponseRecorder {
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/data/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

// upload posts sampleCSV as JSON client and returns the session key.
func upload(t *testing.T, srv *Server) string {
	t.Helper()
	req := uploadRequest(t, "people.csv", sampleCSV, nil)
	req.Header.Set("Accept", "application/json")
	rec := serve(srv, req, adminKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out["session_key"])
	assert.Equal(t, "/data/view/"+out["session_key"], out["redirect"])
	return out["session_key"]
}

func view(t *testing.T, srv *Server, key string) core.View {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/data/view/"+key, nil)
	rec := serve(srv, req, adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v core.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testConfig())
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAuthAndRoles(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/data", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data", nil), teamKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(srv, uploadRequest(t, "a.csv", sampleCSV, nil), teamKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/files", nil), teamKey)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data", nil), adminKey)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/data/process"`)
}

func TestUploadViewReheaderExport(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key := upload(t, srv)

	v := view(t, srv, key)
	assert.Equal(t, "people.csv", v.Filename)
	assert.Equal(t, 3, v.Stats.TotalRows)
	assert.Equal(t, []string{"name", "qty"}, v.Stats.Columns)
	require.NotNil(t, v.Stats.HeaderRow)
	assert.Equal(t, 1, *v.Stats.HeaderRow)
	assert.Equal(t, "B", v.Rows[1].Data["name"])

	// Export with dedup as a urlencoded form.
	form := url.Values{
		"session_key":        {key},
		"selected_indices[]": {"1", "2", "3"},
		"columns[]":          {"name", "qty"},
		"format":             {"csv"},
		"remove_duplicates":  {"1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/data/export", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(srv, req, adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "name,qty\nA,1\nB,2\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "data_export_")
	assert.NotEmpty(t, rec.Header().Get("X-File-ID"))

	// Pick the second displayed row as the new header.
	rec = serve(srv, jsonRequest(t, http.MethodPost, "/data/reassign-headers", map[string]any{
		"session_key": key,
		"view_row":    2,
	}), adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v = view(t, srv, key)
	assert.Equal(t, []string{"B", "2"}, v.Stats.Columns)
	assert.Equal(t, 3, *v.Stats.HeaderRow)
	// Rows above the new header stay in the table.
	require.Len(t, v.Rows, 3)
	assert.Equal(t, "name", v.Rows[0].Data["B"])
	assert.Equal(t, "A", v.Rows[1].Data["B"])
	assert.Equal(t, 3, v.Rows[2].RowIndex)

	// Back to the original header by original numbering.
	rec = serve(srv, jsonRequest(t, http.MethodPost, "/data/reassign-headers", map[string]any{
		"session_key": key,
		"header_row":  1,
	}), adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"name", "qty"}, view(t, srv, key).Stats.Columns)
}

func TestUpload_HTMLRedirects(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := serve(srv, uploadRequest(t, "people.csv", sampleCSV, map[string]string{"header_row": "2"}), adminKey)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/data/view/imported_data_"), loc)

	rec = serve(srv, uploadRequest(t, "notes.txt", "hello", nil), adminKey)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc = rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/data?error="), loc)
	assert.Contains(t, loc, "FILE002")
}

func TestUpload_Errors(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		status   int
		code     string
	}{
		{"unsupported", "notes.txt", "x", nil, http.StatusBadRequest, "FILE002"},
		{"empty", "empty.csv", "", nil, http.StatusBadRequest, "FILE005"},
		{"header out of range", "people.csv", sampleCSV, map[string]string{"header_row": "9"}, http.StatusUnprocessableEntity, "HDR001"},
		{"header not a number", "people.csv", sampleCSV, map[string]string{"header_row": "two"}, http.StatusBadRequest, "REQ003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest(t, tt.filename, tt.content, tt.fields)
			req.Header.Set("Accept", "application/json")
			rec := serve(srv, req, adminKey)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.True(t, strings.HasPrefix(resp.Message, "Failed to process file: "), resp.Message)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/data/process", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := serve(srv, req, adminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE004")
}

func TestMissingSession(t *testing.T) {
	srv := newTestServer(t, testConfig())
	missing := "imported_data_1700000000_0123456789abcdef0123456789abcdef"

	req := httptest.NewRequest(http.MethodGet, "/data/view/"+missing, nil)
	req.Header.Set("Accept", "application/json")
	rec := serve(srv, req, adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "SES001")

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/view/"+missing, nil), adminKey)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/data?error="))

	rec = serve(srv, jsonRequest(t, http.MethodPost, "/data/export", map[string]any{
		"session_key":      missing,
		"selected_indices": []int{1},
		"columns":          []string{"name"},
		"format":           "csv",
	}), adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReassign_Validation(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key := upload(t, srv)

	for name, body := range map[string]map[string]any{
		"view row out of range":   {"session_key": key, "view_row": 4},
		"header row out of range": {"session_key": key, "header_row": 10},
	} {
		rec := serve(srv, jsonRequest(t, http.MethodPost, "/data/reassign-headers", body), adminKey)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "HDR001", name)
	}

	rec := serve(srv, jsonRequest(t, http.MethodPost, "/data/reassign-headers", map[string]any{"session_key": key}), adminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing changed.
	assert.Equal(t, []string{"name", "qty"}, view(t, srv, key).Stats.Columns)
}

func TestExport_Validation(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key := upload(t, srv)

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"no rows", map[string]any{"session_key": key, "columns": []string{"name"}, "format": "csv"}, "EXP001"},
		{"no columns", map[string]any{"session_key": key, "selected_indices": []int{1}, "format": "csv"}, "EXP002"},
		{"bad format", map[string]any{"session_key": key, "selected_indices": []int{1}, "columns": []string{"name"}, "format": "docx"}, "EXP003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, jsonRequest(t, http.MethodPost, "/data/export", tt.body), adminKey)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}

	// Session is still usable.
	assert.Equal(t, 3, view(t, srv, key).Stats.TotalRows)
}

func TestExport_Formats(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key := upload(t, srv)

	for format, ct := range map[string]string{
		"excel": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"pdf":   "application/pdf",
	} {
		rec := serve(srv, jsonRequest(t, http.MethodPost, "/data/export", map[string]any{
			"session_key":      key,
			"selected_indices": []int{1, 2},
			"columns":          []string{"name"},
			"format":           format,
		}), adminKey)
		require.Equal(t, http.StatusOK, rec.Code, format)
		assert.Equal(t, ct, rec.Header().Get("Content-Type"), format)
		assert.NotZero(t, rec.Body.Len(), format)
	}
}

func TestFiles_ListDownloadDelete(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key := upload(t, srv)

	rec := serve(srv, jsonRequest(t, http.MethodPost, "/data/export", map[string]any{
		"session_key":      key,
		"selected_indices": []int{2},
		"columns":          []string{"qty"},
		"format":           "csv",
	}), adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	exportID := rec.Header().Get("X-File-ID")

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/files", nil), adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Imports []core.FileRecord `json:"import_files"`
		Exports []core.FileRecord `json:"export_files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Imports, 1)
	require.Len(t, listed.Exports, 1)
	assert.Equal(t, "people.csv", listed.Imports[0].Filename)

	// Another user sees neither file and cannot fetch them.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/files", nil), teamKey)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Imports)
	assert.Empty(t, listed.Exports)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/files/"+exportID+"/download", nil), teamKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/files/"+exportID+"/download", nil), adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "qty\n2\n", rec.Body.String())

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/data/files/"+exportID, nil), adminKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/data/files/"+exportID+"/download", nil), adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/data/files/abc", nil), adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearSession(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key := upload(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/data/clear-session", strings.NewReader("session_key="+key))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(srv, req, adminKey)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/data", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/data/view/"+key, nil)
	req.Header.Set("Accept", "application/json")
	assert.Equal(t, http.StatusNotFound, serve(srv, req, adminKey).Code)

	// Clearing again is harmless.
	rec = serve(srv, jsonRequest(t, http.MethodPost, "/data/clear-session", map[string]any{"session_key": key}), adminKey)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTemplateDownload(t *testing.T) {
	srv := newTestServer(t, testConfig())
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/data/template", nil), adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.XLSX{}.ContentType(), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.TemplateFilename)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil), "").Code)
	}
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}
