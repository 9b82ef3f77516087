// Package telemetry provides Pyroscope continuous profiling integration.
package telemetry

import (
	"context"
	"maps"

	"github.com/grafana/pyroscope-go"
)

// Constants for profiling labels.
const (
	// ProfilingLabelOperation is the label key for the operation name.
	ProfilingLabelOperation = "operation"
	// ProfilingLabelComponent is the label key for the component name.
	ProfilingLabelComponent = "component"
	// ProfilingLabelClientID is the label key for the client ID.
	ProfilingLabelClientID = "client_id"
)

// MaxLabelValueLength is the maximum allowed length for label values
// to prevent high cardinality and memory issues.
const MaxLabelValueLength = 128

// highCardinalityLabels lists label keys that must never reach Pyroscope
// because their value space grows with traffic.
var highCardinalityLabels = map[string]bool{
	"request_id":     true,
	"trace_id":       true,
	"span_id":        true,
	"transaction_id": true,
	"bill_id":        true,
	"unit_id":        true,
}

// Billing operation names for profiling labels.
const (
	OperationGenerateBill   = "generate_bill"
	OperationProcessPayment = "process_payment"
	OperationApplyPenalties = "apply_penalties"
	OperationYearView       = "year_view"
	OperationStatement      = "statement"
)

// BillingOperationLabels builds the standard label set for a billing
// operation on a component.
func BillingOperationLabels(operation, component string) map[string]string {
	return map[string]string{
		ProfilingLabelOperation: operation,
		ProfilingLabelComponent: component,
	}
}

// WithProfilingLabels wraps a function with profiling labels for Pyroscope.
// Labels allow slicing and filtering profiling data in the Pyroscope UI.
// The labels map is copied internally, so it is safe to modify the original
// map after calling this function.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if len(labels) == 0 {
		fn(ctx)
		return
	}

	labelsCopy := make(map[string]string, len(labels))
	maps.Copy(labelsCopy, labels)

	labelPairs := sanitizeLabels(labelsCopy)
	if len(labelPairs) == 0 {
		fn(ctx)
		return
	}

	pyroscope.TagWrapper(ctx, pyroscope.Labels(labelPairs...), fn)
}

// sanitizeLabels drops high-cardinality or oversized labels and flattens
// the map into the alternating key/value slice Pyroscope expects.
func sanitizeLabels(labels map[string]string) []string {
	pairs := make([]string, 0, len(labels)*2)
	for key, value := range labels {
		if highCardinalityLabels[key] {
			continue
		}
		if key == "" || value == "" {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}
