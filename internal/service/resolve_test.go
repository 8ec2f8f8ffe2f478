package service

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nishad/srafetch/internal/config"
	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/metrics"
	"github.com/nishad/srafetch/internal/pipeline"
	"github.com/nishad/srafetch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(fa *testutil.FakeArchive) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Endpoints.GEO = fa.GEOURL()
	cfg.Endpoints.ENA = fa.ENAURL()
	cfg.Request.IntervalMS = 1
	cfg.Request.TimeoutSeconds = 5
	return cfg
}

func metricsText(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestResolveBatch(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	m := metrics.New()
	var mu sync.Mutex
	completed := 0
	svc := NewResolveService(Options{Config: testConfig(fa), Metrics: m})

	resp, err := svc.Resolve(context.Background(), &ResolveRequest{
		Lines: []string{"SRR000001", "GSM2344754 liver", "XYZ1", ""},
		OnEvent: func(ev pipeline.Event) {
			if ev.Type == pipeline.EventCompleted {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		},
	})
	require.NoError(t, err)

	assert.Len(t, resp.Descriptors, 4)
	assert.Equal(t, 2, resp.Counts[pipeline.OutcomeOK])
	assert.Equal(t, 2, completed)
	require.Len(t, resp.Batch.Failures, 1)
	assert.Equal(t, 3, resp.Batch.Failures[0].Line)
	assert.True(t, resp.Failed())
	assert.Empty(t, resp.BatchID)

	assert.Equal(t, "liver/SRR4421243.fastq.gz", resp.Descriptors[3].DownloadPath)

	text := metricsText(t, m)
	assert.Contains(t, text, `srafetch_pipelines_total{outcome="ok"} 2`)
	assert.Contains(t, text, "srafetch_descriptors_total 4")
	assert.Contains(t, text, `srafetch_line_failures_total{kind="unknown_prefix"} 1`)
	assert.Contains(t, text, `srafetch_request_duration_seconds_count{service="geo"} 1`)
	assert.Contains(t, text, `srafetch_request_duration_seconds_count{service="ena"} 2`)
	assert.Contains(t, text, "srafetch_pipelines_in_flight 0")
}

func TestResolveSavesHistory(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewResolveService(Options{Config: testConfig(fa), History: db})
	require.True(t, svc.HistoryEnabled())

	resp, err := svc.Resolve(context.Background(), &ResolveRequest{Lines: []string{"SRX2243567", "SRR000001"}})
	require.NoError(t, err)
	require.NotEmpty(t, resp.BatchID)
	assert.Empty(t, resp.HistoryError)

	h := NewHistoryService(db)
	detail, err := h.GetBatch(context.Background(), resp.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 4, detail.DescriptorCount)
	assert.Equal(t, resp.Descriptors, detail.Descriptors)

	found, err := h.FindDescriptors(context.Background(), "SRR4421243")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestResolveDoesNotConsultHistory(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewResolveService(Options{Config: testConfig(fa), History: db})
	for i := 0; i < 2; i++ {
		_, err := svc.Resolve(context.Background(), &ResolveRequest{Lines: []string{"SRR000001"}})
		require.NoError(t, err)
	}
	assert.Len(t, fa.RequestsFor("ena"), 2)
}

func TestResolveNilRequest(t *testing.T) {
	svc := NewResolveService(Options{})
	_, err := svc.Resolve(context.Background(), nil)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestResolveOne(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	svc := NewResolveService(Options{Config: testConfig(fa), Metrics: metrics.New()})

	res, err := svc.ResolveOne(context.Background(), "GSM2344754")
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeOK, res.Outcome)
	assert.Equal(t, "SRX2243567", res.QueryID)
	require.Len(t, res.Descriptors, 1)
	assert.Equal(t, "GSM2344754", res.Descriptors[0].OrigAcc)

	_, err = svc.ResolveOne(context.Background(), "PRJNA1")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestResolveOneFailureOutcome(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()
	fa.SetStatus("SRR9", 500)

	svc := NewResolveService(Options{Config: testConfig(fa)})
	res, err := svc.ResolveOne(context.Background(), "SRR9")
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeFetchFailed, res.Outcome)
	assert.NotEmpty(t, res.Error)
}

func TestHistoryServiceDisabled(t *testing.T) {
	h := NewHistoryService(nil)
	assert.False(t, h.Enabled())

	_, err := h.ListBatches(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	_, err = h.GetBatch(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
