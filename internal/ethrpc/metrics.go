package ethrpc

// Metrics receives instrumentation events from the RPC layer.
// Implementations must be safe for concurrent use. When none is
// configured, events are dropped.
type Metrics interface {
	// RecordRPCCall observes one logical call: the method's wire name,
	// the total time including retries, and the final error.
	RecordRPCCall(method string, seconds float64, err error)

	// RecordRPCRetry counts one retry attempt.
	RecordRPCRetry()

	// RecordEndpointProbe counts one endpoint connect-and-probe attempt
	// during Dial.
	RecordEndpointProbe()

	// RecordTxSubmitted counts one broadcast transaction.
	RecordTxSubmitted()

	// RecordTxConfirmed observes one successful confirmation and the
	// time waited for it.
	RecordTxConfirmed(seconds float64)

	// RecordTxReverted counts one transaction mined with failed status.
	RecordTxReverted()
}

type nopMetrics struct{}

func (nopMetrics) RecordRPCCall(string, float64, error) {}
func (nopMetrics) RecordRPCRetry()                      {}
func (nopMetrics) RecordEndpointProbe()                 {}
func (nopMetrics) RecordTxSubmitted()                   {}
func (nopMetrics) RecordTxConfirmed(float64)            {}
func (nopMetrics) RecordTxReverted()                    {}

// WithMetrics installs a metrics sink on the dialed backend.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// metricsCarrier is implemented by backends that carry a metrics
// sink. WaitMined and WriteClient discover it by type assertion, so
// transaction lifecycle counters work through the Backend the caller
// already holds.
type metricsCarrier interface {
	Metrics() Metrics
}

// backendMetrics returns the backend's metrics sink, or a no-op one.
func backendMetrics(b Backend) Metrics {
	if c, ok := b.(metricsCarrier); ok {
		if m := c.Metrics(); m != nil {
			return m
		}
	}
	return nopMetrics{}
}
