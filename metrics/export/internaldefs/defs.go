package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops.
const AuditDroppedName = "gosession_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Sessions created."},
	{ID: goSession.MetricSessionExisting, Name: "gosession_session_existing_total", Help: "Create calls that found a live session."},
	{ID: goSession.MetricSessionTouched, Name: "gosession_session_touched_total", Help: "Activity refreshes of live sessions."},
	{ID: goSession.MetricSessionTouchMiss, Name: "gosession_session_touch_miss_total", Help: "Activity refreshes for absent sessions."},
	{ID: goSession.MetricSessionDeleted, Name: "gosession_session_deleted_total", Help: "Sessions deleted."},
	{ID: goSession.MetricSessionDeleteMiss, Name: "gosession_session_delete_miss_total", Help: "Delete calls for absent sessions."},
	{ID: goSession.MetricTokenLookupHit, Name: "gosession_token_lookup_hit_total", Help: "Token lookups that resolved a user."},
	{ID: goSession.MetricTokenLookupMiss, Name: "gosession_token_lookup_miss_total", Help: "Token lookups with no owner."},
	{ID: goSession.MetricTokenWriteUnverified, Name: "gosession_token_write_unverified_total", Help: "Creates whose token key did not read back."},
	{ID: goSession.MetricBackendError, Name: "gosession_backend_error_total", Help: "Operations that failed on Redis."},
	{ID: goSession.MetricKeysExported, Name: "gosession_keys_exported_total", Help: "Keys written by keyspace exports."},
	{ID: goSession.MetricFlushAll, Name: "gosession_flush_all_total", Help: "FlushAll calls."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricOperationLatency, Name: "gosession_operation_latency_seconds", Help: "Session operation latency histogram."},
}

// HistogramBounds are the upper bounds of the 8 histogram buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds for use in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-bucket array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative le counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
