package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"foodcart/api"
	"foodcart/config"
	"foodcart/live"
	"foodcart/logging"
	"foodcart/metrics"
	"foodcart/middleware"
	"foodcart/mq"
	"foodcart/orders"
	"foodcart/ratelim"
	"foodcart/rdx"
	"foodcart/routes"
	"foodcart/state"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

// corsOptions only lets browsers send the session cookie cross-origin when
// the allowed origins are listed explicitly.
func corsOptions(origins []string) cors.Options {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: !wildcard,
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	policy, err := orders.ParsePolicy(cfg.Orders.TransitionPolicy)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			log.WithError(err).Warn("close store")
		}
	}()

	mediaStore, err := openMedia(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s media store: %w", cfg.Media.Driver, err)
	}

	hub := live.NewHub(log)
	publishers := []state.Publisher{hub}

	var (
		sinks []mq.Sink
		cache api.MenuCache
	)
	if cfg.Redis.Addr != "" {
		conn, err := rdx.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer conn.Close()
		menuCache := rdx.NewMenuCache(conn, cfg.Redis.CacheTTL, log)
		cache = menuCache
		publishers = append(publishers, menuCache)
		sinks = append(sinks, mq.NewRedisSink(conn))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := mq.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		sinks = append(sinks, sink)
	}

	var emitter *mq.Emitter
	if len(sinks) > 0 {
		emitter = mq.NewEmitter(log, sinks...)
		publishers = append(publishers, emitter)
	}

	app := state.New(state.Options{
		Backend:    backend,
		Media:      mediaStore,
		Policy:     policy,
		Publishers: publishers,
		Log:        log,
		CartTTL:    cfg.Carts.TTL,
	})
	if err := app.Load(ctx); err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go hub.Run(runCtx)
	go app.Run(runCtx)
	emitterDone := make(chan struct{})
	if emitter != nil {
		go func() {
			defer close(emitterDone)
			emitter.Run(runCtx)
		}()
	} else {
		close(emitterDone)
	}

	limiter := ratelim.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(runCtx)

	uploadsDir := ""
	if cfg.Media.Driver == "local" {
		uploadsDir = cfg.Media.Dir
	}
	router := routes.New(routes.Deps{
		API:         api.New(app, cache, cfg.Server.PublicURL, log),
		Hub:         hub,
		RateLimiter: limiter,
		UploadsDir:  uploadsDir,
	})

	corsHandler := cors.New(corsOptions(cfg.CORS.AllowedOrigins)).Handler(router)
	handler := middleware.Logging(log)(middleware.SecurityHeaders(metrics.InstrumentHandler(corsHandler)))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   cfg.Server.Addr,
			"store":  cfg.Store.Driver,
			"media":  cfg.Media.Driver,
			"policy": policy,
		}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	cancelRun()
	<-emitterDone
	log.Info("server stopped")
	return nil
}
