package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nishad/srafetch/internal/config"
	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/metrics"
	"github.com/nishad/srafetch/internal/models"
	"github.com/nishad/srafetch/internal/pipeline"
	"github.com/nishad/srafetch/internal/service"
	"github.com/nishad/srafetch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *Server
	archive *testutil.FakeArchive
}

// setupTestServer wires a server to a fake archive; withHistory attaches a
// temp SQLite history database.
func setupTestServer(t *testing.T, withHistory bool) *testEnv {
	t.Helper()

	fa := testutil.NewFakeArchive()
	t.Cleanup(fa.Close)

	cfg := config.DefaultConfig()
	cfg.Endpoints.GEO = fa.GEOURL()
	cfg.Endpoints.ENA = fa.ENAURL()
	cfg.Request.IntervalMS = 1
	cfg.Request.TimeoutSeconds = 5

	var db *database.DB
	if withHistory {
		var err error
		db, err = database.Initialize(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}

	m := metrics.New()
	resolve := service.NewResolveService(service.Options{Config: cfg, Metrics: m, History: db})
	s := NewServer(&Config{Addr: "127.0.0.1:0", EnableCORS: true}, resolve, service.NewHistoryService(db), m)
	return &testEnv{server: s, archive: fa}
}

func (e *testEnv) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestResolveJSONBody(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "POST", "/api/v1/resolve", "application/json",
		`{"accessions":["SRR000001","GSM2344754 liver","BOGUS1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "true", rec.Header().Get("X-Batch-Failed"))
	assert.Empty(t, rec.Header().Get("X-Batch-Id"))

	var resp service.ResolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Descriptors, 4)
	assert.Equal(t, 2, resp.Counts[pipeline.OutcomeOK])
	require.Len(t, resp.Batch.Failures, 1)
	assert.Equal(t, "unknown_prefix", resp.Batch.Failures[0].Reason)
}

func TestResolvePlainTextAria2(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "POST", "/api/v1/resolve?format=aria2", "text/plain", "SRX2243567\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "false", rec.Header().Get("X-Batch-Failed"))

	want := "https://ftp.sra.ebi.ac.uk/vol1/fastq/SRR442/003/SRR4421243/SRR4421243.fastq.gz\n" +
		" checksum=md5=325f82703836a7cc6b5fa84687376e86\n" +
		" check-integrity=true\n" +
		" out=SRX2243567/SRR4421243/SRR4421243.fastq.gz\n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestResolveFormatJSONReturnsDescriptorArray(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "POST", "/api/v1/resolve?format=json", "application/json", `{"accessions":["SRR000001"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var ds []models.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ds))
	require.Len(t, ds, 3)
	assert.Equal(t, "d656237bce7d2153e7d5326653fe950f", ds[0].MD5)
}

func TestResolveBadRequests(t *testing.T) {
	env := setupTestServer(t, false)

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		status      int
	}{
		{"invalid json", "/api/v1/resolve", "application/json", "{", http.StatusBadRequest},
		{"empty list", "/api/v1/resolve", "application/json", `{"accessions":[]}`, http.StatusBadRequest},
		{"unsupported type", "/api/v1/resolve", "application/xml", "<a/>", http.StatusBadRequest},
		{"unknown format", "/api/v1/resolve?format=xml", "text/plain", "SRR1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, env.archive.Requests())
}

func TestLineLimit(t *testing.T) {
	assert.Equal(t, 2251, lineLimit(10*time.Minute, 200*time.Millisecond))
	assert.Equal(t, maxResolveLines, lineLimit(10*time.Minute, time.Millisecond))
	assert.Equal(t, maxResolveLines, lineLimit(10*time.Minute, 0))
}

func TestResolveRejectsBatchLongerThanWriteTimeout(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	cfg := config.DefaultConfig()
	cfg.Endpoints.GEO = fa.GEOURL()
	cfg.Endpoints.ENA = fa.ENAURL()
	cfg.Request.IntervalMS = 1000
	s := NewServer(&Config{Addr: "127.0.0.1:0"}, service.NewResolveService(service.Options{Config: cfg}), nil, nil)
	require.Equal(t, 451, s.maxLines)

	// comments and blank lines are not counted
	body := "# header\n\n" + strings.Repeat("SRR000001\n", s.maxLines)
	req := httptest.NewRequest("POST", "/api/v1/resolve", strings.NewReader(body+"SRR000002\n"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "452")
	assert.Empty(t, fa.Requests())
}

func TestAccessionEndpoint(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "GET", "/api/v1/accessions/GSM2344754?name=liver", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pipeline.OutcomeOK, res.Outcome)
	assert.Equal(t, "SRX2243567", res.QueryID)
	require.Len(t, res.Descriptors, 1)
	assert.Equal(t, "liver/SRR4421243.fastq.gz", res.Descriptors[0].DownloadPath)
}

func TestAccessionEndpointTSV(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "GET", "/api/v1/accessions/SRR000001?format=tsv", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/tab-separated-values", rec.Header().Get("Content-Type"))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 4)
}

func TestAccessionEndpointInvalid(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "GET", "/api/v1/accessions/PRJNA1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessionEndpointFetchFailure(t *testing.T) {
	env := setupTestServer(t, false)
	env.archive.SetStatus("SRR5", http.StatusBadGateway)

	rec := env.do(t, "GET", "/api/v1/accessions/SRR5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pipeline.OutcomeFetchFailed, res.Outcome)
}

func TestBatchesWithHistory(t *testing.T) {
	env := setupTestServer(t, true)

	rec := env.do(t, "POST", "/api/v1/resolve", "text/plain", "SRR000001\nSRX2243567\n")
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Batch-Id")
	require.NotEmpty(t, id)

	rec = env.do(t, "GET", "/api/v1/batches", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Batches []database.BatchSummary `json:"batches"`
		Total   int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, id, list.Batches[0].ID)
	assert.Equal(t, 4, list.Batches[0].DescriptorCount)

	rec = env.do(t, "GET", "/api/v1/batches/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail database.BatchDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Descriptors, 4)

	rec = env.do(t, "GET", "/api/v1/batches/"+id+"/descriptors", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, strings.Count(rec.Body.String(), "check-integrity=true"))

	rec = env.do(t, "GET", "/api/v1/accessions/SRR4421243/history", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = env.do(t, "GET", "/api/v1/batches/00000000-0000-0000-0000-000000000000", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchesWithoutHistory(t *testing.T) {
	env := setupTestServer(t, false)

	for _, target := range []string{"/api/v1/batches", "/api/v1/batches/abc", "/api/v1/stats"} {
		rec := env.do(t, "GET", target, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t, true)

	rec := env.do(t, "GET", "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":"healthy"`)

	env.do(t, "GET", "/api/v1/accessions/SRR000001", "", "")

	rec = env.do(t, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `srafetch_pipelines_total{outcome="ok"} 1`)
}

func TestCORSHeaders(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "GET", "/health", "", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoot(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, "GET", "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/resolve")
}
