package monitoring

import (
	"context"
	"time"

	"variant-orchestrator/core/models"
)

// TelemetryService queries per-variant invocation telemetry emitted by the
// hosting service. The counts come from the service's own metrics, not from
// local bookkeeping.
type TelemetryService interface {
	VariantInvocations(ctx context.Context, endpointID, variantID string, start, end time.Time) (int64, error)
	VariantModelLatency(ctx context.Context, endpointID, variantID string, start, end time.Time) (time.Duration, error)
}

// VariantTraffic is the observed traffic for one variant over a window
type VariantTraffic struct {
	VariantID   string
	Invocations int64
	Share       float64 // fraction of the endpoint's total invocations
	AvgLatency  time.Duration
}

// Reporter aggregates hosting-service telemetry per variant
type Reporter struct {
	telemetry TelemetryService
}

// NewReporter creates a telemetry reporter
func NewReporter(telemetry TelemetryService) *Reporter {
	return &Reporter{telemetry: telemetry}
}

// TrafficReport returns each variant's invocation count, traffic share and
// average model latency over the window. This is how an observed traffic
// split is verified against the configured weights.
func (r *Reporter) TrafficReport(ctx context.Context, ep *models.Endpoint, start, end time.Time) ([]VariantTraffic, error) {
	report := make([]VariantTraffic, 0, len(ep.Variants))
	var total int64

	for _, v := range ep.Variants {
		count, err := r.telemetry.VariantInvocations(ctx, ep.ID, v.ID, start, end)
		if err != nil {
			return nil, err
		}
		latency, err := r.telemetry.VariantModelLatency(ctx, ep.ID, v.ID, start, end)
		if err != nil {
			return nil, err
		}
		report = append(report, VariantTraffic{
			VariantID:   v.ID,
			Invocations: count,
			AvgLatency:  latency,
		})
		total += count
	}

	if total > 0 {
		for i := range report {
			report[i].Share = float64(report[i].Invocations) / float64(total)
		}
	}

	return report, nil
}
