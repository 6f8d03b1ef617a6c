package domain

import "time"

type MetricsCollector interface {
	RecordRequest(method string, outcome string, duration time.Duration)
	RecordCacheLookup(hit bool)
	RecordUsageLookup(ok bool)
	RecordSave(kind Kind, err error)
	RecordStaleRefresh(kind Kind)
	RecordArtifactSync(name string, err error)
}

// NopMetrics discards everything. Used when no collector is wired.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(string, string, time.Duration) {}
func (NopMetrics) RecordCacheLookup(bool)                      {}
func (NopMetrics) RecordUsageLookup(bool)                      {}
func (NopMetrics) RecordSave(Kind, error)                      {}
func (NopMetrics) RecordStaleRefresh(Kind)                     {}
func (NopMetrics) RecordArtifactSync(string, error)            {}
