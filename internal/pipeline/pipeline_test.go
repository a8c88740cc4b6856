package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/laurenamos/sustainable-model-chooser/internal/config"
	"github.com/laurenamos/sustainable-model-chooser/internal/diff"
	"github.com/laurenamos/sustainable-model-chooser/internal/httpclient"
	"github.com/laurenamos/sustainable-model-chooser/internal/openrouter"
)

const catalogDoc = `{
  "models": [
    {"name": "M1", "vendor": "a", "openrouter": {"id": "a/m1"}},
    {"name": "M2", "vendor": "a", "openrouter": {"id": "a/m2"}},
    {"name": "Local", "vendor": "b"}
  ]
}
`

const modelsBody = `{"data":[{
  "id": "a/m1",
  "name": "A: Model One",
  "context_length": 131072,
  "pricing": {"prompt": "0.00000025", "completion": "0.00000125", "request": "not-a-number"},
  "top_provider": {"is_moderated": false}
}]}`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func modelsServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipeline(path, url string, now time.Time) *Pipeline {
	cfg := &config.Config{CatalogPath: path, AtomicWrite: true}
	src := openrouter.New(url, httpclient.New())
	return New(cfg, src).WithClock(func() time.Time { return now })
}

func TestSyncEndToEnd(t *testing.T) {
	path := writeCatalog(t, catalogDoc)
	srv := modelsServer(t, http.StatusOK, modelsBody, nil)
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	res, err := newPipeline(path, srv.URL, now).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Merge.Updated)
	assert.Equal(t, 1, res.Merge.Unresolved)
	assert.True(t, res.Written)
	assert.Equal(t, "2026-10-16T09:30:00.000000+00:00", res.SyncedAt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasSuffix(content, "\n"))
	assert.Equal(t, res.SyncedAt, gjson.Get(content, "openrouterSyncedAt").String())
	assert.Equal(t, 0.25, gjson.Get(content, "models.0.openrouter.pricing_per_mtok_usd.prompt").Float())
	assert.Equal(t, srv.URL, gjson.Get(content, "models.0.openrouter.source").String())
	assert.Equal(t, "OpenRouter id not found: a/m2", gjson.Get(content, "models.1.openrouter.sync_error").String())
	assert.False(t, gjson.Get(content, "models.2.openrouter").Exists())
	assert.Equal(t, "b", gjson.Get(content, "models.2.vendor").String())

	var keys []string
	gjson.Get(content, "models.0").ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"name", "vendor", "openrouter"}, keys)
}

func TestSyncTimestampAdvances(t *testing.T) {
	path := writeCatalog(t, catalogDoc)
	srv := modelsServer(t, http.StatusOK, modelsBody, nil)

	first := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	_, err := newPipeline(path, srv.URL, first).Sync(context.Background())
	require.NoError(t, err)
	before, _ := os.ReadFile(path)

	res, err := newPipeline(path, srv.URL, first.Add(time.Minute)).Sync(context.Background())
	require.NoError(t, err)
	after, _ := os.ReadFile(path)

	assert.Greater(t,
		gjson.GetBytes(after, "openrouterSyncedAt").String(),
		gjson.GetBytes(before, "openrouterSyncedAt").String())
	assert.False(t, res.ChangeSet.HasChanges(), "second run with same index changes only timestamps")
	assert.Equal(t, 1, res.ChangeSet.StillUnresolved)
}

func TestSyncFetchFailureLeavesFileUnchanged(t *testing.T) {
	path := writeCatalog(t, catalogDoc)
	srv := modelsServer(t, http.StatusInternalServerError, "boom", nil)

	_, err := newPipeline(path, srv.URL, time.Now()).Sync(context.Background())
	require.Error(t, err)

	var se *httpclient.StatusError
	assert.True(t, errors.As(err, &se))

	data, _ := os.ReadFile(path)
	assert.Equal(t, catalogDoc, string(data))
}

func TestSyncMalformedResponseLeavesFileUnchanged(t *testing.T) {
	path := writeCatalog(t, catalogDoc)
	srv := modelsServer(t, http.StatusOK, `{"models":[]}`, nil)

	_, err := newPipeline(path, srv.URL, time.Now()).Sync(context.Background())
	require.ErrorIs(t, err, openrouter.ErrMalformedResponse)

	data, _ := os.ReadFile(path)
	assert.Equal(t, catalogDoc, string(data))
}

func TestSyncMissingCatalogAbortsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := modelsServer(t, http.StatusOK, modelsBody, &hits)
	path := filepath.Join(t.TempDir(), "missing.json")

	_, err := newPipeline(path, srv.URL, time.Now()).Sync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, int32(0), hits.Load())
}

func TestSyncDryRun(t *testing.T) {
	path := writeCatalog(t, catalogDoc)
	srv := modelsServer(t, http.StatusOK, modelsBody, nil)

	p := newPipeline(path, srv.URL, time.Now())
	p.cfg.DryRun = true

	res, err := p.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, 1, res.Merge.Updated)

	data, _ := os.ReadFile(path)
	assert.Equal(t, catalogDoc, string(data))
}

func TestDiffDoesNotWrite(t *testing.T) {
	path := writeCatalog(t, catalogDoc)
	srv := modelsServer(t, http.StatusOK, modelsBody, nil)

	cs, err := newPipeline(path, srv.URL, time.Now()).Diff(context.Background())
	require.NoError(t, err)

	assert.Equal(t, srv.URL, cs.Source)
	require.Len(t, cs.Updated, 1)
	assert.Equal(t, "a/m1", cs.Updated[0].ID)
	require.Len(t, cs.NewlyUnresolved, 1)
	assert.Equal(t, 1, cs.Skipped)

	data, _ := os.ReadFile(path)
	assert.Equal(t, catalogDoc, string(data))
}

func TestNewSource(t *testing.T) {
	srv := modelsServer(t, http.StatusOK, modelsBody, nil)
	cfg := &config.Config{
		SourceURL:  srv.URL,
		Timeout:    5 * time.Second,
		RateLimit:  10,
		UserAgent:  "test",
		CacheDir:   t.TempDir(),
		CacheTTL:   time.Hour,
		Revalidate: true,
	}

	src, err := NewSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, src.URL())

	idx, err := src.FetchIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/m1"}, idx.IDs())
}

func TestAssessRisk_LargeChangeset(t *testing.T) {
	cs := &diff.ChangeSet{}
	for i := 0; i < 26; i++ {
		cs.Updated = append(cs.Updated, diff.EntryChange{ID: "model"})
	}

	if !assessRisk(cs) {
		t.Error("expected draft for >25 changes")
	}
}

func TestAssessRisk_ManyUnresolved(t *testing.T) {
	cs := &diff.ChangeSet{
		NewlyUnresolved: []diff.EntryChange{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
	}

	if !assessRisk(cs) {
		t.Error("expected draft for >3 newly unresolved ids")
	}
}

func TestAssessRisk_NormalChangeset(t *testing.T) {
	cs := &diff.ChangeSet{
		Updated:         []diff.EntryChange{{ID: "a"}},
		NewlyUnresolved: []diff.EntryChange{{ID: "b"}},
	}

	if assessRisk(cs) {
		t.Error("expected non-draft for small changeset")
	}
}

func TestAssessRisk_PriceDelta(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		old, new  float64
		wantDraft bool
	}{
		{"large increase", "pricing_per_mtok_usd.prompt", 1.0, 2.0, true},
		{"large decrease", "pricing_per_mtok_usd.completion", 10, 5, true},
		{"small change", "pricing_per_mtok_usd.prompt", 1.0, 1.1, false},
		{"per-token field ignored", "pricing_per_token_usd.prompt", 1e-06, 5e-06, false},
		{"context change ignored", "context_length", 1000, 100000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &diff.ChangeSet{
				Updated: []diff.EntryChange{{
					ID:      "a/m1",
					Changes: []diff.FieldChange{{Field: tt.field, OldValue: tt.old, NewValue: tt.new}},
				}},
			}
			if got := assessRisk(cs); got != tt.wantDraft {
				t.Errorf("assessRisk = %v, want %v", got, tt.wantDraft)
			}
		})
	}
}
