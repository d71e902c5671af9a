package internal

import (
	"context"
	"strconv"
	"sync"

	"github.com/lychee-technology/catalogue"
)

// Telemetry hooks for the value write path. The default emitter discards
// everything; a service can register a metrics-backed emitter or a test
// stub with RegisterTelemetryEmitter.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. Passing nil
// restores the no-op emitter.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() telemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitLatency records a latency measure (milliseconds) for a named operation.
// name: "catalogue_latency_ms" with label {"op": "<save_value|save_values|delete_product>"}
func EmitLatency(ctx context.Context, op string, ms int64) {
	emitter()(ctx, "catalogue_latency_ms", map[string]string{"op": op}, ms)
}

// EmitValueWrite counts SaveValue outcomes.
// name: "catalogue_value_write" with labels {"type": "<attribute type>", "result": "<save result>"}
func EmitValueWrite(ctx context.Context, attrType catalogue.AttributeType, result catalogue.SaveResult) {
	labels := map[string]string{"type": string(attrType), "result": string(result)}
	emitter()(ctx, "catalogue_value_write", labels, int64(1))
}

// EmitTxRetry records a retried value transaction.
// name: "catalogue_tx_retry" with label {"attempt": "<n>"}
func EmitTxRetry(ctx context.Context, attempt int) {
	emitter()(ctx, "catalogue_tx_retry", map[string]string{"attempt": strconv.Itoa(attempt)}, int64(1))
}

// EmitFileStoreError counts failed file store calls.
// name: "catalogue_file_store_error" with label {"op": "save"|"delete"}
func EmitFileStoreError(ctx context.Context, op string) {
	emitter()(ctx, "catalogue_file_store_error", map[string]string{"op": op}, int64(1))
}
