package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	_ "net/http/pprof"

	"github.com/nimbushost/statusproxy/pkg/robusthttp"
	"github.com/nimbushost/statusproxy/statuspage"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "statusproxy",
		Usage:   "caching proxy between the public site and the status-page provider",
		Version: versioninfo.Short(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "upstream-host",
				Usage:   "method, hostname, and port of the status provider API",
				Value:   "https://api.instatus.com",
				EnvVars: []string{"STATUSPAGE_API_HOST"},
			},
			&cli.StringFlag{
				Name:    "public-host",
				Usage:   "public origin of the status page, for unauthenticated feed reads",
				Value:   "https://status.nimbushost.com",
				EnvVars: []string{"STATUSPAGE_PUBLIC_HOST"},
			},
			&cli.StringFlag{
				Name:    "page-id",
				Usage:   "status page identifier within the provider account",
				EnvVars: []string{"STATUSPAGE_PAGE_ID"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "bearer token for the provider API; if unset, status routes report a configuration error",
				EnvVars: []string{"STATUSPAGE_API_KEY"},
			},
			&cli.IntFlag{
				Name:    "upstream-rate-limit",
				Usage:   "max number of requests per second to the provider",
				Value:   8,
				EnvVars: []string{"STATUSPROXY_UPSTREAM_RATE_LIMIT"},
			},
			&cli.DurationFlag{
				Name:    "upstream-timeout",
				Usage:   "per-request deadline for provider fetches",
				Value:   time.Second * 10,
				EnvVars: []string{"STATUSPROXY_UPSTREAM_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity level (eg: warn, info, debug)",
				EnvVars: []string{"STATUSPROXY_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			&cli.Command{
				Name:   "serve",
				Usage:  "run the statusproxy API daemon",
				Action: runServeCmd,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "bind",
						Usage:    "Specify the local IP/port to bind to",
						Required: false,
						Value:    ":8300",
						EnvVars:  []string{"STATUSPROXY_BIND"},
					},
					&cli.StringFlag{
						Name:    "metrics-listen",
						Usage:   "IP or address, and port, to listen on for metrics APIs",
						Value:   ":3300",
						EnvVars: []string{"STATUSPROXY_METRICS_LISTEN"},
					},
					&cli.DurationFlag{
						Name:    "cache-ttl",
						Usage:   "freshness bound for cached status reads",
						Value:   time.Second * 60,
						EnvVars: []string{"STATUSPROXY_CACHE_TTL"},
					},
					&cli.StringFlag{
						Name:    "redis-url",
						Usage:   "share the status cache via redis: redis://<user>:<pass>@<hostname>:6379/<db> (empty means in-process only)",
						EnvVars: []string{"STATUSPROXY_REDIS_URL"},
					},
				},
			},
			&cli.Command{
				Name:   "summary",
				Usage:  "fetch and print the live page status summary",
				Action: runSummaryCmd,
			},
			&cli.Command{
				Name:   "incidents",
				Usage:  "fetch and print the live incidents list",
				Action: runIncidentsCmd,
			},
		},
	}
	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func configClient(cctx *cli.Context) *statuspage.APIClient {
	return &statuspage.APIClient{
		HTTPClient: robusthttp.NewClient(),
		Host:       cctx.String("upstream-host"),
		PublicHost: cctx.String("public-host"),
		PageID:     cctx.String("page-id"),
		APIKey:     cctx.String("api-key"),
	}
}

func runServeCmd(cctx *cli.Context) error {
	logger := configLogger(cctx, os.Stdout)

	srv, err := NewServer(Config{
		Logger:            logger,
		Bind:              cctx.String("bind"),
		UpstreamHost:      cctx.String("upstream-host"),
		PublicHost:        cctx.String("public-host"),
		PageID:            cctx.String("page-id"),
		APIKey:            cctx.String("api-key"),
		CacheTTL:          cctx.Duration("cache-ttl"),
		RedisURL:          cctx.String("redis-url"),
		UpstreamTimeout:   cctx.Duration("upstream-timeout"),
		UpstreamRateLimit: rate.Limit(cctx.Int("upstream-rate-limit")),
	})
	if err != nil {
		return fmt.Errorf("failed to construct server: %v", err)
	}

	// prometheus HTTP endpoint: /metrics
	go func() {
		runtime.SetBlockProfileRate(10)
		runtime.SetMutexProfileFraction(10)
		if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
			slog.Error("failed to start metrics endpoint", "error", err)
			// NOTE: not crashing or halting process here
		}
	}()

	return srv.RunAPI()
}

func runSummaryCmd(cctx *cli.Context) error {
	client := configClient(cctx)

	raw, err := client.Fetch(cctx.Context, "status", nil)
	if err != nil {
		return err
	}
	return printJSON(raw)
}

func runIncidentsCmd(cctx *cli.Context) error {
	client := configClient(cctx)

	raw, err := client.Fetch(cctx.Context, "incidents", nil)
	if err != nil {
		return err
	}
	return printJSON(raw)
}

func printJSON(raw json.RawMessage) error {
	var indented any
	if err := json.Unmarshal(raw, &indented); err != nil {
		return err
	}
	b, err := json.MarshalIndent(indented, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
