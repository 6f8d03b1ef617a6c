package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"substore-client/internal/domain"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, zap.NewNop())

	c.RecordRequest("GET", "success", 20*time.Millisecond)
	c.RecordRequest("GET", "success", 30*time.Millisecond)
	c.RecordRequest("POST", "api_error", time.Millisecond)
	c.RecordCacheLookup(true)
	c.RecordCacheLookup(false)
	c.RecordCacheLookup(false)
	c.RecordUsageLookup(false)
	c.RecordSave(domain.KindSubscription, nil)
	c.RecordSave(domain.KindCollection, errors.New("boom"))
	c.RecordStaleRefresh(domain.KindSubscription)
	c.RecordArtifactSync("X", nil)
	c.RecordArtifactSync("Y", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST", "api_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.usageLookups.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.savesTotal.WithLabelValues("subscription", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.savesTotal.WithLabelValues("collection", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.staleRefreshes.WithLabelValues("subscription")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lastSyncStatus.WithLabelValues("X")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lastSyncStatus.WithLabelValues("Y")))

	expected := `
# HELP substore_stale_refreshes_total Total number of refreshes caused by a stale local copy
# TYPE substore_stale_refreshes_total counter
substore_stale_refreshes_total{kind="subscription"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "substore_stale_refreshes_total"))
}

func TestCollectorsDoNotCollideAcrossRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(NewRegistry(), zap.NewNop())
		NewCollector(NewRegistry(), zap.NewNop())
	})
}
