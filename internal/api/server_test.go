package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docmap/internal/blobstore"
	"github.com/dgallion1/docmap/internal/config"
	"github.com/dgallion1/docmap/internal/llm"
	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/pipeline"
	"github.com/dgallion1/docmap/internal/session"
)

type echoExtractor struct{}

func (echoExtractor) Extract(_ context.Context, in parser.Input) (string, error) {
	return string(in.Data), nil
}

type treeGenerator struct{}

func (treeGenerator) Generate(_ context.Context, req outline.Request) outline.Outline {
	return outline.New(req.Title, []outline.Node{
		{Title: "Раздел", Children: []outline.Node{{Title: strings.TrimSpace(req.Text)}}},
	})
}

type testEnv struct {
	srv   *Server
	maps  *session.Memory
	stats *llm.Stats
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	maps := session.NewMemory()
	blobs := blobstore.NewFS(dir, "http://localhost:8090/files")

	svc := pipeline.NewService(echoExtractor{}, treeGenerator{}, blobs, maps, pipeline.ServiceConfig{}, log)
	orch := pipeline.NewOrchestrator(pipeline.PoolConfig{WorkerCount: 1, MaxQueueSize: 4}, svc, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	stats := llm.NewStats(time.Hour)
	cfg := config.Config{MaxUploadBytes: 1024, BlobBackend: "fs", BlobDir: dir}
	return &testEnv{
		srv:   NewServer(orch, maps, llm.NewCatalog(llm.DefaultBackends), stats, log, cfg),
		maps:  maps,
		stats: stats,
		dir:   dir,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/maps", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateMapLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, uploadRequest(t, map[string]string{
		"user_id": "42",
		"depth":   "Подробно",
		"title":   "Заметки",
	}, "notes.txt", []byte("Пункт один")))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, rec, &created)
	require.NotEmpty(t, created.JobID)
	assert.Equal(t, "/api/maps/jobs/"+created.JobID, created.PollURL)

	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, created.PollURL, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		decode(t, rec, &snap)
		return snap.Status == pipeline.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "detailed", snap.Depth)
	assert.Equal(t, "document", snap.Kind)
	assert.Equal(t, "Заметки", snap.Title)
	require.NotEmpty(t, snap.MapID)
	assert.True(t, strings.HasPrefix(snap.URL, "http://localhost:8090/files/generated_maps/"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/maps?user_id=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Maps []mapSummary `json:"maps"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Maps, 1)
	assert.Equal(t, snap.MapID, list.Maps[0].ID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/maps/"+snap.MapID+"?user_id=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Map   session.MapRecord `json:"map"`
		Lines []string          `json:"lines"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, "Заметки", detail.Map.Title)
	assert.Equal(t, []string{"• Раздел", "  • Пункт один"}, detail.Lines)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/maps/"+snap.MapID+"?user_id=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "class=\"markmap\"")

	key := strings.TrimPrefix(snap.URL, "http://localhost:8090/files/")
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/files/"+key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Заметки")
}

func TestCreateMapValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, uploadRequest(t, map[string]string{}, "a.txt", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")

	rec = env.do(t, uploadRequest(t, map[string]string{"user_id": "1"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file is required")

	rec = env.do(t, uploadRequest(t, map[string]string{"user_id": "1"}, "big.txt", bytes.Repeat([]byte("a"), 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMapLookupErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/maps/not-a-uuid?user_id=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/maps/6f1c1c1e-8f0b-4a57-9b0a-2f9e96f3c111?user_id=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/maps/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModelsAndStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var models struct {
		Models []string `json:"models"`
	}
	decode(t, rec, &models)
	assert.NotEmpty(t, models.Models)

	env.stats.Record("yandexgpt", 120*time.Millisecond, false)
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var report llm.StatsReport
	decode(t, rec, &report)
	assert.Equal(t, 1, report.Overall.Count)
	assert.Contains(t, report.Backends, "yandexgpt")
}

func TestSniffKind(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, parser.KindImage, sniffKind(png))
	assert.Equal(t, parser.KindDocument, sniffKind([]byte("plain text")))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Equal(t, "a_b.txt", sanitizeFilename("a..b.txt"))
}

func TestFilesRouteServesOnlyBlobDir(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "x.md"), []byte("# X"), 0o644))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/files/x.md", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# X", rec.Body.String())
}
