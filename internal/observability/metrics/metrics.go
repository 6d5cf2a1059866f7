package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes bookkeeping instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	vouchersPosted   metric.Int64Counter
	postingsRejected metric.Int64Counter
	reportsBuilt     metric.Int64Counter
	reportImbalances metric.Int64Counter
	ledgerChanges    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "bookkeeper"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.vouchersPosted, "bookkeeper_vouchers_posted_total", "Vouchers committed by the posting engine."},
		{&m.postingsRejected, "bookkeeper_postings_rejected_total", "Vouchers rejected before commit."},
		{&m.reportsBuilt, "bookkeeper_reports_total", "Financial statements computed."},
		{&m.reportImbalances, "bookkeeper_report_imbalances_total", "Statements returned with a non-zero diff."},
		{&m.ledgerChanges, "bookkeeper_ledger_changes_total", "Chart of accounts mutations."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordVoucherPosted(ctx context.Context, voucherType string) {
	if m == nil {
		return
	}
	m.vouchersPosted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("voucher_type", voucherType),
	)...))
}

func (m *Metrics) RecordPostingRejected(ctx context.Context, voucherType, reason string) {
	if m == nil {
		return
	}
	m.postingsRejected.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("voucher_type", voucherType),
		attribute.String("reason", reason),
	)...))
}

// RecordReport counts a computed statement and, separately, whether it came out unbalanced.
func (m *Metrics) RecordReport(ctx context.Context, report string, balanced bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("report", report))...)
	m.reportsBuilt.Add(ctx, 1, attrs)
	if !balanced {
		m.reportImbalances.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordLedgerChange(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.ledgerChanges.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("action", action),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"voucher_type": {},
	"reason":       {},
	"report":       {},
	"action":       {},
	"route":        {},
	"method":       {},
	"status_code":  {},
}

// FilterAttributes strips labels outside the allow-list to keep cardinality bounded.
// Ledger and voucher ids never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
