package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tg_channel_gate_bot/internal/channel"
	"tg_channel_gate_bot/internal/config"
	"tg_channel_gate_bot/internal/feature/user"
	"tg_channel_gate_bot/internal/httpserver"
	"tg_channel_gate_bot/internal/logging"
	"tg_channel_gate_bot/internal/metrics"
	"tg_channel_gate_bot/internal/store"
	"tg_channel_gate_bot/internal/telegram"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	channelResolveTimeout  = 30 * time.Second
	httpShutdownTimeout    = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	registry, problems := channel.Parse(cfg.Channels)
	for _, problem := range problems {
		logger.WithField("event", "channel_skipped").WithError(problem).Warn("ignoring unrecognized channel entry")
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		fmt.Printf("channels: %v\n", registry.Values())
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"channels": registry.Len(),
		"webhook":  cfg.UsesWebhook(),
		"mongo":    cfg.MongoEnabled(),
	}).Info("configuration loaded")

	if registry.IsEmpty() {
		logger.WithField("event", "channels_empty").Warn("no channels configured, every user will pass verification")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	m.SetChannels(registry.Len())

	clientOpts := []telegram.Option{telegram.WithMetrics(m)}
	serverOpts := httpserver.Options{Gatherer: prometheus.DefaultGatherer}

	var mongoManager *store.Manager
	if cfg.MongoEnabled() {
		mongoManager = connectStore(cfg, logger)
		clientOpts = append(clientOpts, telegram.WithUserRegistrar(user.NewRegistrar(mongoManager.Users(), logger)))
		serverOpts.MongoChecker = mongoManager
	}

	tgClient, err := telegram.NewClient(cfg, registry, logger, clientOpts...)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolveCtx, cancelResolve := context.WithTimeout(signalCtx, channelResolveTimeout)
	resolved := tgClient.ResolveChannels(resolveCtx)
	cancelResolve()

	logger.WithFields(logging.Fields{
		"event":    "channels_resolved",
		"resolved": resolved,
		"total":    registry.Len(),
	}).Info("channel lookup finished")

	if handler := tgClient.WebhookHandler(); handler != nil {
		serverOpts.WebhookPath = cfg.WebhookPath()
		serverOpts.WebhookHandler = handler
	}
	server := httpserver.NewServer(cfg.HTTPPort, registry.Len(), serverOpts, logger)

	g, gctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		return tgClient.Start(gctx)
	})

	g.Go(func() error {
		return server.ListenAndServe()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.WithField("event", "shutdown_signal").Info("stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithField("event", "runtime_error").WithError(err).Error("service stopped with error")
	}

	if mongoManager != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		if err := mongoManager.Close(shutdownCtx); err != nil {
			logger.WithError(err).Error("mongo disconnect error")
		} else {
			logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
		}
		cancelShutdown()
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func connectStore(cfg config.Config, logger *logrus.Entry) *store.Manager {
	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	err = mongoManager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")
	return mongoManager
}
