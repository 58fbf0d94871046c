// Package metrics provides the OpenTelemetry-based metrics exporter
// for the VFS core: mount lifecycle and Git-operation counters bridged
// to a Prometheus registry (spec §4's ambient observability surface).
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	meter metric.Meter

	MountsActive    metric.Int64UpDownCounter
	GitCommitsTotal metric.Int64Counter
	GitPushesTotal  metric.Int64Counter
	GitPullsTotal   metric.Int64Counter
	OverlayBytes    metric.Int64UpDownCounter
)

// Registry is the Prometheus registerer the OTel bridge exports into.
// A package-level registry (rather than prometheus.DefaultRegisterer)
// keeps repeated test initialisation collision-free.
var Registry = prometheus.NewRegistry()

// InitOTLPExporter wires an OTel meter provider to Registry and
// creates every counter/gauge this module reports. Registry is
// replaced with a fresh instance on each call so repeated
// initialisation (e.g. across test cases in one process) never trips
// Prometheus's duplicate-collector registration error.
func InitOTLPExporter(ctx context.Context) (func(context.Context) error, error) {
	fmt.Println("Initializing OTLP exporter")

	Registry = prometheus.NewRegistry()
	exporter, err := otelprometheus.New(
		otelprometheus.WithRegisterer(Registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter = provider.Meter("vfscore")

	MountsActive, err = meter.Int64UpDownCounter("vfs_mounts_active")
	if err != nil {
		return nil, err
	}
	GitCommitsTotal, err = meter.Int64Counter("vfs_git_commits_total")
	if err != nil {
		return nil, err
	}
	GitPushesTotal, err = meter.Int64Counter("vfs_git_pushes_total")
	if err != nil {
		return nil, err
	}
	GitPullsTotal, err = meter.Int64Counter("vfs_git_pulls_total")
	if err != nil {
		return nil, err
	}
	OverlayBytes, err = meter.Int64UpDownCounter("vfs_overlay_bytes")
	if err != nil {
		return nil, err
	}

	return func(context.Context) error {
		fmt.Println("Shutting down OTLP exporter")
		return nil
	}, nil
}
