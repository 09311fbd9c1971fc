package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbushost/statusproxy/pkg/robusthttp"
	"github.com/nimbushost/statusproxy/statuscache"
	"github.com/nimbushost/statusproxy/statuspage"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/time/rate"
)

type Server struct {
	status *statuscache.CachedClient
	writer statuspage.Fetcher
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

type Config struct {
	Logger            *slog.Logger
	Bind              string
	UpstreamHost      string
	PublicHost        string
	PageID            string
	APIKey            string
	CacheTTL          time.Duration
	RedisURL          string
	UpstreamTimeout   time.Duration
	UpstreamRateLimit rate.Limit
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	client := &statuspage.APIClient{
		HTTPClient: robusthttp.ProxyClient(config.UpstreamTimeout),
		Host:       config.UpstreamHost,
		PublicHost: config.PublicHost,
		PageID:     config.PageID,
		APIKey:     config.APIKey,
		Limiter:    upstreamLimiter(config.UpstreamRateLimit),
	}

	var store statuscache.Store
	if config.RedisURL != "" {
		rs, err := statuscache.NewRedisStore(config.RedisURL, time.Hour*24, 10_000)
		if err != nil {
			return nil, err
		}
		store = rs
	} else {
		store = statuscache.NewMemStore()
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		status: statuscache.NewCachedClient(client, store, config.CacheTTL),
		writer: client,
		echo:   e,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(echoprometheus.NewMiddleware("statusproxy"))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)

	e.GET("/api/status/components", srv.ListComponents)
	e.GET("/api/status/components/:id", srv.GetComponent)
	e.GET("/api/status/incidents", srv.ListIncidents)
	e.GET("/api/status/incidents/:id", srv.GetIncident)
	e.GET("/api/status/maintenances", srv.ListMaintenances)
	e.GET("/api/status/maintenances/:id", srv.GetMaintenance)

	e.GET("/api/status/widget/indicator", srv.WidgetIndicator)
	e.GET("/api/status/widget/incidents", srv.WidgetIncidents)

	e.POST("/api/status/subscribe", srv.Subscribe)

	e.GET("/api/status/rss/*", srv.Feed)

	return srv, nil
}

// upstreamLimiter bounds calls to the provider. Burst matches the per-second
// limit so a cold dashboard render touching several endpoints is not
// serialized to one fetch per refill interval.
func upstreamLimiter(limit rate.Limit) *rate.Limiter {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	slog.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	slog.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		slog.Info("received OS exit signal", "signal", sig)

		if err := srv.Shutdown(); err != nil {
			slog.Error("HTTP server shutdown error", "err", err)
		}

		close(quit)
	}()
	<-quit
	slog.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
