package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docshield/redactor/internal/config"
	"github.com/docshield/redactor/internal/document/memdoc"
	"github.com/docshield/redactor/internal/manager"
	"github.com/docshield/redactor/internal/metrics"
	"github.com/docshield/redactor/internal/notify"
	"github.com/docshield/redactor/internal/pdfproc"
	"github.com/docshield/redactor/internal/redact"
	"github.com/docshield/redactor/internal/storage"
)

type englishGate struct{}

func (englishGate) IsEnglish(string) bool { return true }

type staticRules struct{}

func (staticRules) Load(string) ([]redact.Config, error) {
	return []redact.Config{
		redact.TextConfig{RuleName: "names", Terms: []string{"jane doe"}},
	}, nil
}

type testServer struct {
	server *Server
	srcDir string
	dstDir string
}

func newTestServer(t *testing.T, apiKey string, jobs *storage.JobStore) *testServer {
	t.Helper()

	registry, err := redact.NewDefaultRegistry(redact.Dependencies{})
	require.NoError(t, err)
	proc := pdfproc.NewPDFProcessor(memdoc.Opener{}, registry, englishGate{}, zap.NewNop(), pdfproc.WithWorkers(2))
	processors := pdfproc.NewProcessorRegistry()
	require.NoError(t, processors.Register(proc))

	artifacts, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	var opts []manager.Option
	if jobs != nil {
		opts = append(opts, manager.WithJobStore(jobs))
	}
	mgr := manager.New(processors, staticRules{}, storage.NewDefaultFactory(), artifacts, notify.Nop{}, zap.NewNop(), opts...)

	cfg := &config.Config{
		Server:   config.ServerConfig{Address: "127.0.0.1", Port: 0, ReadTimeout: 5, WriteTimeout: 5},
		Security: config.SecurityConfig{APIKey: apiKey},
	}

	return &testServer{
		server: New(cfg, mgr, jobs, metrics.New(), zap.NewNop()),
		srcDir: t.TempDir(),
		dstDir: t.TempDir(),
	}
}

func (ts *testServer) redactBody(t *testing.T, jobID string) []byte {
	t.Helper()
	data, err := memdoc.New([]string{"see the cat and jane doe"}).Save()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ts.srcDir, "in.pdf"), data, 0o644))

	body, err := json.Marshal(manager.Request{
		OverrideID: jobID,
		FileKind:   "pdf",
		ReadDetails: &manager.StorageDetails{
			StorageKind: "file",
			Properties:  map[string]string{"root": ts.srcDir, "key": "in.pdf"},
		},
		WriteDetails: &manager.StorageDetails{
			StorageKind: "file",
			Properties:  map[string]string{"root": ts.dstDir, "key": "out.pdf"},
		},
	})
	require.NoError(t, err)
	return body
}

func doJSON(t *testing.T, app *fiber.App, method, path, apiKey string, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "secret", nil)

	resp := doJSON(t, ts.server.App(), "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doJSON(t, ts.server.App(), "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "redactor_active_jobs")
}

func TestRedactRequiresAPIKey(t *testing.T) {
	ts := newTestServer(t, "secret", nil)

	resp := doJSON(t, ts.server.App(), "POST", "/redact", "", ts.redactBody(t, "job-1"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "AUTH_001", body["code"])
}

func TestRedactWrongAPIKey(t *testing.T) {
	ts := newTestServer(t, "secret", nil)

	resp := doJSON(t, ts.server.App(), "POST", "/redact", "wrong", ts.redactBody(t, "job-1"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRedactEndToEnd(t *testing.T) {
	ts := newTestServer(t, "secret", nil)

	resp := doJSON(t, ts.server.App(), "POST", "/redact", "secret", ts.redactBody(t, "job-1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result manager.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "job-1", result.ID)
	assert.Equal(t, manager.StageAnalyse, result.Stage)
	assert.Equal(t, manager.StatusSuccess, result.Status)

	assert.FileExists(t, filepath.Join(ts.dstDir, "out.pdf"))
}

func TestRedactInvalidBody(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doJSON(t, ts.server.App(), "POST", "/redact", "", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApplyEndToEnd(t *testing.T) {
	ts := newTestServer(t, "", nil)

	// Analyse first so the apply stage has provisional highlights to burn.
	resp := doJSON(t, ts.server.App(), "POST", "/redact", "", ts.redactBody(t, "job-a"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	provisional, err := os.ReadFile(filepath.Join(ts.dstDir, "out.pdf"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ts.srcDir, "in.pdf"), provisional, 0o644))

	resp = doJSON(t, ts.server.App(), "POST", "/apply", "", ts.redactBody(t, "job-a"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result manager.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, manager.StageRedact, result.Stage)
	assert.Equal(t, manager.StatusSuccess, result.Status)
}

func TestGetJobRecord(t *testing.T) {
	jobs, err := storage.OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer jobs.Close()

	ts := newTestServer(t, "", jobs)

	resp := doJSON(t, ts.server.App(), "GET", "/jobs/job-1", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, ts.server.App(), "POST", "/redact", "", ts.redactBody(t, "job-1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, ts.server.App(), "GET", "/jobs/job-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec storage.JobRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, manager.StatusSuccess, rec.Status)
}

func TestListJobs(t *testing.T) {
	jobs, err := storage.OpenJobStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	defer jobs.Close()

	ts := newTestServer(t, "", jobs)

	for i := 0; i < 2; i++ {
		resp := doJSON(t, ts.server.App(), "POST", "/redact", "", ts.redactBody(t, fmt.Sprintf("job-%d", i)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doJSON(t, ts.server.App(), "GET", "/jobs", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []storage.JobRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	assert.Len(t, records, 2)
}
