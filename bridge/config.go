package bridge

import (
	"fmt"

	"editor-bridge/codec"
	"editor-bridge/config"
	"editor-bridge/contract"
	"editor-bridge/loadbalance"
	"editor-bridge/middleware"
	"editor-bridge/registry"

	"github.com/charmbracelet/log"
)

// NewFromConfig builds a bridge from configuration. The pipeline is, outermost first:
//
//	tracing → metrics → logging → retry (if RETRIES > 0) → contract checks → rate limit (if RATE_LIMIT > 0)
//
// With ETCD_ENDPOINTS set the editor is discovered under PROJECT; otherwise ADDR is used.
// Closing the bridge also closes the etcd client.
func NewFromConfig(cfg config.Config, logger *log.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codecType, err := codec.ParseCodecType(cfg.Codec)
	if err != nil {
		return nil, err
	}

	catalog := contract.Default()
	if cfg.ContractsFile != "" {
		if catalog, err = contract.LoadFile(cfg.ContractsFile); err != nil {
			return nil, err
		}
	}

	metrics, err := middleware.MetricsMiddleware(nil)
	if err != nil {
		return nil, err
	}
	mws := []middleware.Middleware{
		middleware.TracingMiddleware(nil),
		metrics,
		middleware.LoggingMiddleware(logger),
	}
	if cfg.Retries > 0 {
		mws = append(mws, middleware.RetryMiddleware(cfg.Retries, cfg.RetryDelay, logger))
	}
	mws = append(mws, middleware.ContractMiddleware(catalog, cfg.StrictContracts))
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}

	heartbeat := cfg.Heartbeat
	if heartbeat == 0 {
		heartbeat = -1
	}
	opts := []Option{
		WithCodec(codecType),
		WithDialTimeout(cfg.DialTimeout),
		WithHeartbeat(heartbeat),
		WithLogger(logger),
		WithMiddleware(mws...),
	}

	if !cfg.UseDiscovery() {
		return New(StaticResolver(cfg.Addr), opts...), nil
	}

	bal, err := loadbalance.New(cfg.Balancer, cfg.AffinityKey)
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("editor discovery: %w", err)
	}
	resolver := &DiscoveryResolver{Registry: reg, Project: cfg.Project, Balancer: bal}
	return New(resolver, append(opts, withCloser(reg))...), nil
}
