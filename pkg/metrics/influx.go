// Package metrics wraps influxdb-client-go/v2 to publish one point per
// solve (objective, certificate count, skip count, wall-clock duration) to
// a time-series bucket, following the Config-struct-plus-Close idiom of
// pkg/messaging.Client and pkg/circuit.Breaker.
package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Config configures the InfluxDB connection used to record solve metrics.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Recorder writes one point per solve to InfluxDB. A zero-value Recorder
// (no client attached) silently no-ops, so callers that never configure
// InfluxDB don't need a nil check at every call site.
type Recorder struct {
	client influxdb2.Client
	write  api.WriteAPI
	bucket string
	org    string
}

// NewRecorder dials InfluxDB and returns a Recorder using its async write
// API, matching the fire-and-forget way the teacher's NATS client publishes
// domain events without blocking the caller on an ack.
func NewRecorder(cfg Config) *Recorder {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Recorder{
		client: client,
		write:  client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket: cfg.Bucket,
		org:    cfg.Org,
	}
}

// Close flushes any buffered points and releases the underlying client.
func (r *Recorder) Close() {
	if r == nil || r.client == nil {
		return
	}
	r.write.Flush()
	r.client.Close()
}

// SolveResult is the subset of a solve outcome the Recorder writes as one
// InfluxDB point.
type SolveResult struct {
	FleetID         string
	Status          string
	Objective       int
	CertificateCount int
	SkipCount       int
	Duration        time.Duration
}

// RecordSolve writes one point for a completed solve. Safe to call on a nil
// Recorder.
func (r *Recorder) RecordSolve(ctx context.Context, result SolveResult) {
	if r == nil || r.client == nil {
		return
	}

	p := influxdb2.NewPoint(
		"solve",
		map[string]string{
			"fleet_id": result.FleetID,
			"status":   result.Status,
		},
		map[string]interface{}{
			"objective":         result.Objective,
			"certificate_count": result.CertificateCount,
			"skip_count":        result.SkipCount,
			"duration_ms":       result.Duration.Milliseconds(),
		},
		time.Now(),
	)

	r.write.WritePoint(p)
}
