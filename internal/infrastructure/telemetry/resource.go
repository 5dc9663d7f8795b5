package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// ServiceVersion is reported as the service.version resource attribute
const ServiceVersion = "1.0.0"

// Resource attribute keys describing the sync deployment
var (
	AttrVendor      = attribute.Key("closeout.vendor")
	AttrLedgerTable = attribute.Key("closeout.ledger.table")
)

// SyncResource identifies the deployment that produced a span or a metric
type SyncResource struct {
	ServiceName string
	Environment string
	Vendor      string
	LedgerTable string
}

// NewResource builds the resource shared by the tracer and meter providers.
// Empty fields are left out.
func NewResource(r SyncResource) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(r.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	}
	if r.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(r.Environment))
	}
	if r.Vendor != "" {
		attrs = append(attrs, AttrVendor.String(r.Vendor))
	}
	if r.LedgerTable != "" {
		attrs = append(attrs, AttrLedgerTable.String(r.LedgerTable))
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// SyncViews restricts every closeout_* instrument to the feed and source attributes
func SyncViews() []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: "closeout_*"},
			sdkmetric.Stream{AttributeFilter: attribute.NewAllowKeysFilter(AttrFeed, AttrSource)},
		),
	}
}
