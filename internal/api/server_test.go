package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/naromat/internal/config"
	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/pipeline"
)

const (
	manuscript = "我が輩は猫である。\n// メモ\nどこで[生まれた:.]のかとんと[見当:けんとう]がつかぬ。\n"
	formatted  = "　我が輩は猫である。\n　どこで｜生まれた《・・・・》のかとんと｜見当《けんとう》がつかぬ。\n"
)

func newTestServer(t *testing.T, modify func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if modify != nil {
		modify(&cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	orch := pipeline.NewOrchestrator(cfg.ParserOptions(), cfg.ResultTTL, m, log)
	return NewServer(orch, m, log, cfg)
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/format/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_FormatText(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/format", strings.NewReader(manuscript)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, formatted, rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get("X-Naromat-Lines"))
	assert.Equal(t, "1", rec.Header().Get("X-Naromat-Comment-Lines"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestServer_FormatTextTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxUploadBytes = 8 })
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/format", strings.NewReader(manuscript)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_FormatFileAndFetchResult(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, uploadRequest(t, "chapter1.txt", []byte(manuscript)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ResultID     string `json:"result_id"`
		Filename     string `json:"filename"`
		Lines        int    `json:"lines"`
		CommentLines int    `json:"comment_lines"`
		ResultURL    string `json:"result_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ResultID)
	assert.Equal(t, "chapter1.txt", resp.Filename)
	assert.Equal(t, 2, resp.Lines)
	assert.Equal(t, 1, resp.CommentLines)
	assert.Equal(t, "/api/results/"+resp.ResultID, resp.ResultURL)

	rec = serve(s, httptest.NewRequest(http.MethodGet, resp.ResultURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, formatted, rec.Body.String())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, resp.ResultURL, nil)
	req.Header.Set("If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, serve(s, req).Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, resp.ResultURL+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap pipeline.JobSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, pipeline.StatusCompleted, snap.Status)
	assert.Equal(t, "chapter1", snap.Title)
}

func TestServer_FormatMarkdownFile(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, uploadRequest(t, "notes.md", []byte("# 第一話\n\n本文です。\n")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "第一話", resp["title"])
}

func TestServer_FormatFileTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxUploadBytes = 1024 })

	// Larger than the limit plus the multipart allowance, so the body
	// limit trips while the form is parsed.
	big := bytes.Repeat([]byte("猫"), (2<<20)/3)
	rec := serve(s, uploadRequest(t, "big.txt", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	// Over the limit but inside the allowance: rejected after reading.
	rec = serve(s, uploadRequest(t, "medium.txt", bytes.Repeat([]byte("a"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestServer_FormatFileUnsupported(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, uploadRequest(t, "image.png", []byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")
}

func TestServer_FormatFileMissingField(t *testing.T) {
	s := newTestServer(t, nil)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/format/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)
}

func TestServer_ResultNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/results/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Auth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.APIKey = "secret" })

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/format", strings.NewReader(manuscript)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/format", strings.NewReader(manuscript))
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/format", strings.NewReader(manuscript))
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	// Health stays public.
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, nil)
	serve(s, httptest.NewRequest(http.MethodPost, "/api/format", strings.NewReader(manuscript)))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `naromat_documents_total{outcome="completed"} 1`)
	assert.Contains(t, rec.Body.String(), "naromat_lines_total 2")
}

func TestServer_Stats(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.ResultTTL = 5 * time.Minute })
	serve(s, uploadRequest(t, "a.txt", []byte(manuscript)))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stored_results":1,"result_ttl":"5m0s"}`, rec.Body.String())
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"chapter.txt":          "chapter.txt",
		"../../etc/passwd.txt": "passwd.txt",
		`C:\novel\ch1.md`:      "ch1.md",
		"..":                   "_",
		"":                     "unnamed.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), "input %q", in)
	}
}
