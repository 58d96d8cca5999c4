package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comparador/pkg/cache"
	"comparador/pkg/config"
	"comparador/pkg/fetch"
	"comparador/pkg/logger"
	"comparador/pkg/metrics"
	"comparador/pkg/retailers"
	"comparador/pkg/retailers/carrefour"
	"comparador/pkg/retailers/extra"
	"comparador/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

const serviceName = "comparador"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run(cfg config.Config) error {
	shutdownTracing, err := telemetry.Setup(serviceName, cfg.Tracing, os.Stdout)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	m := metrics.NewRegistry()

	resultCache, closer, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	fetcher := fetch.NewFetcher()
	fetcher.MaxHops = cfg.UpstreamMaxRedirects
	fetcher.Timeout = cfg.UpstreamTimeout
	fetcher.Transport = telemetry.Transport(nil)
	fetcher.Observer = m

	registry := buildRegistry(cfg, fetcher, m, resultCache)
	for _, rt := range registry.Active() {
		logger.Log.Info().Str("retailer", rt.Name()).Msg("Retailer enabled")
	}

	router := newRouter(&server{registry: registry, metrics: m}, routerOptions{
		docsDir:     cfg.DocsDir,
		corsOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           telemetry.Handler(router, serviceName),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if ip := GetOutboundIP(); ip != nil {
		logger.Log.Info().Msgf("Local Network URL: http://%s:%s", ip.String(), cfg.Port)
	} else {
		logger.Log.Info().Msg("Could not determine local IP address.")
	}
	logger.Log.Info().Msgf("Access URL: http://localhost:%s", cfg.Port)
	logger.Log.Info().Msgf("API Docs: http://localhost:%s/", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCache returns a nil cache when caching is disabled.
func openCache(cfg config.Config) (retailers.ResultCache, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.CacheSQLite:
		c, err := cache.New(cfg.CacheDBPath, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.Info().Str("path", cfg.CacheDBPath).Dur("ttl", cfg.CacheTTL).Msg("Cache initialized")
		return c, c, nil
	case config.CacheRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.Info().Dur("ttl", cfg.CacheTTL).Msg("Redis cache initialized")
		return c, c, nil
	default:
		return nil, nil, nil
	}
}

func buildRegistry(cfg config.Config, fetcher *fetch.Fetcher, m *metrics.Registry, rc retailers.ResultCache) *retailers.Registry {
	registry := retailers.NewRegistry(cfg.UpstreamConcurrency)

	cc := cfg.Retailer(carrefour.Key)
	cr := carrefour.New(fetcher)
	cr.Metrics = m
	if cc.BaseURL != "" {
		cr.BaseURL = cc.BaseURL
	}
	if cc.Store != "" {
		cr.Store = cc.Store
	}
	if cc.Location != "" {
		cr.Location = cc.Location
	}
	var rt retailers.Retailer = cr
	if rc != nil {
		rt = retailers.WithCache(cr, rc, m)
	}
	registry.Register(rt, cc.IsEnabled(true))

	ec := cfg.Retailer(extra.Key)
	ex := extra.New()
	if ec.Store != "" {
		ex.Store = ec.Store
	}
	if ec.Location != "" {
		ex.Location = ec.Location
	}
	registry.Register(ex, ec.IsEnabled(false))

	return registry
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}
