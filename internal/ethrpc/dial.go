package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Default configuration values.
const (
	DefaultDialTimeout  = 15 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryDelay   = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultPollInterval = 2 * time.Second
)

// options configures dialing and the retrying backend.
type options struct {
	dialTimeout time.Duration
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *log.Logger
	metrics     Metrics
}

// Option configures Dial and the retry wrapper it installs.
type Option func(*options)

// WithDialTimeout sets the per-endpoint connect-and-probe timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithMaxRetries sets maximum retry attempts for read calls.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.retryDelay = d }
}

// WithMaxDelay sets the maximum retry delay.
func WithMaxDelay(d time.Duration) Option {
	return func(o *options) { o.maxDelay = d }
}

// WithLogger sets the logger used for endpoint selection and retries.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func defaultOptions() options {
	return options{
		dialTimeout: DefaultDialTimeout,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      log.New(io.Discard, "", 0),
		metrics:     nopMetrics{},
	}
}

// Dial connects to the first reachable endpoint in order. Each
// endpoint is probed with a chain ID request before being accepted,
// so providers that accept connections but reject calls are skipped.
// The returned backend retries transient read failures with
// exponential backoff. If every endpoint fails, the combined error
// reports each endpoint's failure.
func Dial(ctx context.Context, endpoints []string, opts ...Option) (Backend, string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if len(endpoints) == 0 {
		return nil, "", errors.New("ethrpc: no RPC endpoints configured")
	}

	var errs []error
	for _, endpoint := range endpoints {
		o.metrics.RecordEndpointProbe()
		dialCtx, cancel := context.WithTimeout(ctx, o.dialTimeout)
		client, err := ethclient.DialContext(dialCtx, endpoint)
		if err != nil {
			cancel()
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}

		// Probe: a provider that cannot answer eth_chainId is useless.
		if _, err := client.ChainID(dialCtx); err != nil {
			cancel()
			client.Close()
			errs = append(errs, fmt.Errorf("%s: probe: %w", endpoint, err))
			continue
		}
		cancel()

		o.logger.Printf("connected to RPC endpoint %s", endpoint)
		return newRetryBackend(client, o), endpoint, nil
	}

	return nil, "", fmt.Errorf("ethrpc: all RPC endpoints failed: %w", errors.Join(errs...))
}
