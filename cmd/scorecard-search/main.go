package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/scorecard-search/internal/config"
	"github.com/Sternrassler/scorecard-search/pkg/checkpoint"
	"github.com/Sternrassler/scorecard-search/pkg/client"
	"github.com/Sternrassler/scorecard-search/pkg/dispatch"
	"github.com/Sternrassler/scorecard-search/pkg/logging"
	"github.com/Sternrassler/scorecard-search/pkg/metrics"
	"github.com/Sternrassler/scorecard-search/pkg/search"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scorecard-search: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Search failed")
		os.Exit(1)
	}
}

// run wires the components and searches the configured range. Matches are
// written to out as JSON lines.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, closeStore, err := openStore(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer closeStore()

	lookups, err := client.New(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("create lookup client: %w", err)
	}

	searchCfg := cfg.SearchConfig()
	searchCfg.Reporter = search.NewJSONReporter(out)
	searchCfg.Store = store

	controller, err := search.NewController(dispatch.NewDispatcher(lookups, cfg.DispatchConfig()), searchCfg)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	searchCtx, searchDone := context.WithCancel(gctx)

	if cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-searchCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer searchDone()

		summary, err := controller.Run(searchCtx)
		log.Info().
			Int("searched", summary.Searched).
			Int("matches", len(summary.Matches)).
			Int64("next_identifier", summary.NextIdentifier).
			Msg("Search stopped")
		return err
	})

	return g.Wait()
}

// openStore connects to Redis when addr is set and falls back to an
// in-memory store otherwise.
func openStore(ctx context.Context, addr string) (checkpoint.Store, func(), error) {
	if addr == "" {
		return checkpoint.NewMemoryStore(), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{Addr: addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("Connected to Redis")

	return checkpoint.NewRedisStore(redisClient), func() { redisClient.Close() }, nil
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
