package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/CrewImport/internal/config"
	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/core/storetest"
	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/sheet"
)

const testSecret = "test-secret"

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, TempDir: t.TempDir()},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true, JWTSecret: testSecret},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *storetest.Store) {
	t.Helper()
	st := storetest.New()
	svc := core.NewService(st, core.Options{CheckBatchDuplicates: true})
	return NewServer(svc, cfg), st
}

func crewCSV(t *testing.T, rows int) []byte {
	t.Helper()
	def, err := schema.Get(schema.Crew)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(def.Columns()))
	for i := 0; i < rows; i++ {
		row := append([]string(nil), def.Example...)
		row[3] = fmt.Sprintf("11010119900101%04d", i)
		row[4] = fmt.Sprintf("1380000%04d", i)
		row[14] = ""
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.Bytes()
}

// multipartRequest builds a POST with optional type field and file part.
func multipartRequest(t *testing.T, path, entity, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if entity != "" {
		require.NoError(t, mw.WriteField("type", entity))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestTemplate(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/import/template/crew", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sheet.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="`+url.PathEscape("船员导入模板.xlsx")+`"`,
		rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestTemplate_UnknownType(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/import/template/ship", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid template type", decode(t, rec)["error"])
}

func TestValidate(t *testing.T) {
	s, st := newTestServer(t, testConfig(t))

	rec := serve(s, multipartRequest(t, "/import/validate", "crew", "crew.csv", crewCSV(t, 7)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "crew.csv", body["filename"])

	validation := body["validation"].(map[string]any)
	assert.Equal(t, true, validation["isValid"])
	assert.Equal(t, float64(7), validation["totalRows"])
	assert.Equal(t, float64(7), validation["validCount"])

	preview := body["previewData"].([]any)
	require.Len(t, preview, core.DefaultPreviewRows)
	first := preview[0].(map[string]any)
	assert.Equal(t, true, first["_valid"])
	assert.Equal(t, "张三", first["name"])

	assert.Equal(t, 0, st.CrewCount(), "dry run writes nothing")
}

func TestValidate_ReportsRowErrors(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))
	data := []byte("name,gender\n张三,unknown\n")

	rec := serve(s, multipartRequest(t, "/import/validate", "crew", "crew.csv", data))

	require.Equal(t, http.StatusOK, rec.Code)
	validation := decode(t, rec)["validation"].(map[string]any)
	assert.Equal(t, false, validation["isValid"])
	assert.NotEmpty(t, validation["errors"])
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		entity     string
		filename   string
		data       []byte
		maxSize    int64
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{
			name:       "no file",
			entity:     "crew",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
			wantError:  "No file uploaded",
		},
		{
			name:       "unknown type",
			entity:     "ship",
			filename:   "crew.csv",
			data:       []byte("name\nx\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL001",
			wantError:  "Invalid import type",
		},
		{
			name:       "missing type",
			filename:   "crew.csv",
			data:       []byte("name\nx\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL001",
		},
		{
			name:       "header only",
			entity:     "crew",
			filename:   "crew.csv",
			data:       []byte("name,gender\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
			wantError:  "Excel文件为空或格式不正确",
		},
		{
			name:       "not a spreadsheet",
			entity:     "crew",
			filename:   "crew.png",
			data:       []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name:       "too large",
			entity:     "crew",
			filename:   "crew.csv",
			data:       bytes.Repeat([]byte("a"), 4096),
			maxSize:    512,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.maxSize > 0 {
				cfg.Upload.MaxFileSize = tt.maxSize
			}
			s, _ := newTestServer(t, cfg)

			rec := serve(s, multipartRequest(t, "/import/validate", tt.entity, tt.filename, tt.data))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}

func TestUpload_RemovesSpoolFile(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestServer(t, cfg)

	for _, data := range [][]byte{crewCSV(t, 1), []byte("name\n")} {
		serve(s, multipartRequest(t, "/import/validate", "crew", "crew.csv", data))

		entries, err := os.ReadDir(cfg.Upload.TempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestImport(t *testing.T) {
	s, st := newTestServer(t, testConfig(t))

	rec := serve(s, multipartRequest(t, "/import/import", "crew", "crew.csv", crewCSV(t, 3)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "成功导入 3 条船员数据", body["message"])

	result := body["result"].(map[string]any)
	assert.Equal(t, float64(3), result["importedCount"])
	assert.Equal(t, float64(3), result["totalCount"])
	assert.Equal(t, []any{}, result["errors"])
	assert.Equal(t, []any{}, result["duplicates"])
	assert.Equal(t, 3, st.CrewCount())
}

func TestImport_RejectsInvalidUpload(t *testing.T) {
	s, st := newTestServer(t, testConfig(t))
	data := crewCSV(t, 2)
	st.AddCrew("110101199001010000", "13900000000")

	rec := serve(s, multipartRequest(t, "/import/import", "crew", "crew.csv", data))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Data validation failed", body["error"])

	validation := body["validation"].(map[string]any)
	assert.Equal(t, false, validation["isValid"])
	errs := validation["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, float64(1), first["row"])
	assert.Equal(t, "id_number", first["field"])
	assert.Equal(t, "身份证号已存在", first["message"])

	assert.Equal(t, 1, st.CrewCount(), "nothing written")
}

func TestImport_StoreUnavailable(t *testing.T) {
	s, st := newTestServer(t, testConfig(t))
	st.AcquireErr = errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")

	rec := serve(s, multipartRequest(t, "/import/import", "crew", "crew.csv", crewCSV(t, 1)))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DB004", decode(t, rec)["code"])
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/import/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "history": []any{}}, decode(t, rec))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))
	serve(s, multipartRequest(t, "/import/validate", "crew", "crew.csv", crewCSV(t, 1)))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crewimport_pipeline_total")
}

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"no token", "", http.StatusUnauthorized, "AUTH001"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "AUTH001"},
		{"bad signature", "Bearer " + signedToken(t, "other-secret", "ops"), http.StatusUnauthorized, "AUTH002"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "AUTH002"},
		{"valid", "Bearer " + signedToken(t, testSecret, "ops"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Security.RequireAuth = true
			s, _ := newTestServer(t, cfg)

			req := httptest.NewRequest(http.MethodGet, "/import/history", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(s, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode(t, rec)["code"])
			}
		})
	}
}

func TestAuth_HealthIsPublic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAuth = true
	s, _ := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Uploads(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	s, _ := newTestServer(t, cfg)

	first := serve(s, multipartRequest(t, "/import/validate", "crew", "crew.csv", crewCSV(t, 1)))
	require.Equal(t, http.StatusOK, first.Code)

	second := serve(s, multipartRequest(t, "/import/validate", "crew", "crew.csv", crewCSV(t, 1)))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE001", decode(t, second)["code"])

	history := serve(s, httptest.NewRequest(http.MethodGet, "/import/history", nil))
	assert.Equal(t, http.StatusOK, history.Code, "upload bucket does not affect other routes")
}
