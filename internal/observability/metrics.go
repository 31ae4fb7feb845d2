package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/pipeline"
)

// ProgressExporter samples a conversion's progress into Prometheus gauges.
type ProgressExporter struct {
	progress func() pipeline.Progress
	interval time.Duration

	total     prometheus.Gauge
	submitted prometheus.Gauge
	converted prometheus.Gauge
	written   prometheus.Gauge
	fill      *prometheus.GaugeVec
	capacity  *prometheus.GaugeVec
}

// NewProgressExporter creates the gauges and registers them with reg.
//
// Precondition: progress must be non-nil; interval must be positive.
// Postcondition: Returns an exporter whose gauges hold the first sample.
func NewProgressExporter(reg prometheus.Registerer, progress func() pipeline.Progress, interval time.Duration) (*ProgressExporter, error) {
	e := &ProgressExporter{
		progress: progress,
		interval: interval,
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "units_total",
			Help:      "Units found by counting, or -1 while counting.",
		}),
		submitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "units_submitted",
			Help:      "Units handed to the convert pool.",
		}),
		converted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "units_converted",
			Help:      "Units converted.",
		}),
		written: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "units_written",
			Help:      "Output units written.",
		}),
		fill: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "queue_fill",
			Help:      "Units waiting in a queue.",
		}, []string{"queue"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "queue_capacity",
			Help:      "Capacity of a queue.",
		}, []string{"queue"}),
	}
	for _, c := range []prometheus.Collector{e.total, e.submitted, e.converted, e.written, e.fill, e.capacity} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering progress metrics: %w", err)
		}
	}
	e.Sample()
	return e, nil
}

// Sample copies the current progress into the gauges.
func (e *ProgressExporter) Sample() {
	p := e.progress()
	e.total.Set(float64(p.Total))
	e.submitted.Set(float64(p.Submitted))
	e.converted.Set(float64(p.Converted))
	e.written.Set(float64(p.Written))
	e.fill.WithLabelValues("convert").Set(float64(p.ConvertQueue.Fill))
	e.capacity.WithLabelValues("convert").Set(float64(p.ConvertQueue.Capacity))
	e.fill.WithLabelValues("write").Set(float64(p.WriteQueue.Fill))
	e.capacity.WithLabelValues("write").Set(float64(p.WriteQueue.Capacity))
}

// Run samples every interval until ctx is done, then takes a final sample.
func (e *ProgressExporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Sample()
		case <-ctx.Done():
			e.Sample()
			return
		}
	}
}
