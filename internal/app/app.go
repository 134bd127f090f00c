package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cosmik-network/cardsync/internal/config"
	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/firehose/jetstream"
	"github.com/cosmik-network/cardsync/internal/httpserver"
	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/publisher"
	"github.com/cosmik-network/cardsync/internal/redis"
	"github.com/cosmik-network/cardsync/internal/scheduler"
	"github.com/cosmik-network/cardsync/internal/store/memory"
	redisstore "github.com/cosmik-network/cardsync/internal/store/redis"
	"github.com/cosmik-network/cardsync/internal/usecase"
	"github.com/cosmik-network/cardsync/internal/utils"
	"github.com/cosmik-network/cardsync/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	consumer    *firehose.Consumer
	importer    *scheduler.LibraryImporter
	orphans     *scheduler.OrphanCollector
}

// backend is the storage chosen by CARDSYNC_STORE.
type backend struct {
	cards       domain.CardRepository
	collections domain.CollectionRepository
	pinger      deps.Pinger
	cursors     jetstream.CursorStore
	client      *goredis.Client
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	store, err := openStore(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Store, err)
		os.Exit(1)
	}

	// Dry-run publisher: records are minted locally, nothing leaves the process.
	rec := publisher.NewRecorder(loggerClient.With(logger.String("component", "publisher")))
	locks := curation.NewKeyedMutex()
	events := curation.NewLogDispatcher(loggerClient)

	linking := curation.NewCardCollectionService(store.collections, rec, locks, events, loggerClient)
	library := curation.NewCardLibraryService(store.cards, store.collections, rec, linking, events, loggerClient)
	resolver := curation.NewAtURIResolutionService(store.cards, store.collections)

	commands := usecase.New(usecase.Deps{
		Cards:               store.cards,
		Collections:         store.collections,
		Library:             library,
		Linking:             linking,
		CollectionPublisher: rec,
		Locks:               locks,
		Logger:              loggerClient,
	})

	fhLog := loggerClient.With(logger.String("component", "firehose"))
	dispatcher := firehose.NewDispatcher(fhLog)
	dispatcher.Handle(domain.CardNSID, firehose.NewCardEventProcessor(commands, resolver, fhLog))
	dispatcher.Handle(domain.CollectionLinkNSID, firehose.NewCollectionLinkEventProcessor(commands, resolver, fhLog))
	dispatcher.Handle(domain.CollectionNSID, firehose.NewCollectionEventProcessor(commands, resolver, fhLog))

	// Live source (optional). Without it events arrive only through HTTP.
	var consumer *firehose.Consumer
	var consumerStats deps.ConsumerStats
	if cfg.JetstreamURL != "" {
		source := jetstream.New(jetstream.Config{
			URL:               cfg.JetstreamURL,
			WantedCollections: dispatcher.Collections(),
		}, store.cursors, fhLog)
		consumer = firehose.NewConsumer(source, dispatcher, fhLog, cfg.FirehoseShards, cfg.FirehoseBuffer)
		consumerStats = consumer
	} else {
		loggerClient.Info("jetstream url not configured, firehose accepts pushed events only")
	}

	// Library importer (if an import file is configured)
	var importer *scheduler.LibraryImporter
	var importTrigger chan struct{}
	if cfg.ImportFile != "" {
		loggerClient.Info("import file configured, initializing library importer",
			logger.String("file", cfg.ImportFile))
		importTrigger = make(chan struct{}, 1)
		importer = scheduler.NewLibraryImporter(
			cfg.ImportFile,
			commands,
			loggerClient,
			cfg.ImportInterval,
			importTrigger,
		)
	}

	orphans := scheduler.NewOrphanCollector(
		store.cards,
		locks,
		loggerClient,
		cfg.OrphanGCInterval,
		cfg.OrphanGCThreshold,
	)

	d := deps.Deps{
		Logger:             loggerClient,
		StartTime:          time.Now(),
		Build:              version.Get(),
		TimeNow:            time.Now,
		AllowedHosts:       cfg.AllowedHosts,
		AllowedCIDRS:       cfg.AllowedCIDRS,
		TrustProxy:         cfg.TrustProxy,
		IngestBurst:        cfg.IngestBurst,
		IngestRefillPerMin: cfg.IngestRefillMin,
		StoreKind:          cfg.Store,
		Store:              store.pinger,
		Dispatcher:         dispatcher,
		Consumer:           consumerStats,
		Resolver:           resolver,
		ImportTrigger:      importTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: store.client,
		consumer:    consumer,
		importer:    importer,
		orphans:     orphans,
	}
}

func openStore(cfg *config.Config, log logger.Logger) (*backend, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, state is lost on restart")
		s := memory.NewStore()
		return &backend{cards: s.Cards(), collections: s.Collections(), pinger: s}, nil
	}

	log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redis.New(context.Background(), redis.OptionsFromConfig(cfg), log)
	if err != nil {
		return nil, err
	}
	log.Info("Redis initialized successfully")

	s := redisstore.NewStore(client)

	// The AT-URI index is derived from the stored aggregates.
	rebuilder := scheduler.NewURIIndexRebuilder(s, log)
	if err := rebuilder.Rebuild(context.Background()); err != nil {
		log.Warn("failed to rebuild at-uri index on startup", logger.Error(err))
	}

	return &backend{
		cards:       s.Cards(),
		collections: s.Collections(),
		pinger:      s,
		cursors:     redisstore.NewCursorStore(client),
		client:      client,
	}, nil
}

func (a *App) Run() error {
	build := version.Get()
	a.logger.Infof("🚀 Starting cardsync v%s on %s", build.Version, a.cfg.ListenPort)
	a.logger.Info("build",
		logger.String("commit", build.Commit),
		logger.String("built", build.BuildDate),
		logger.String("go", build.GoVersion),
		logger.Bool("modified", build.Modified))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.importer != nil {
		if err := a.importer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start library importer: %w", err)
		}
		a.logger.Info("library importer started",
			logger.Duration("interval", a.cfg.ImportInterval))
	}

	if err := a.orphans.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orphan collector: %w", err)
	}
	a.logger.Info("orphan collector started",
		logger.Duration("interval", a.cfg.OrphanGCInterval))

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start firehose consumer: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Drain in-flight events before the store goes away.
	if a.consumer != nil {
		a.consumer.Stop()
		a.logger.Info("firehose consumer stopped",
			logger.Int64("received", a.consumer.Received()),
			logger.Int64("processed", a.consumer.Processed()))
	}
	if a.importer != nil {
		a.importer.Stop()
	}
	a.orphans.Stop()

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}

	_ = a.logger.Sync()
	a.logger.Info("✅ cardsync stopped cleanly")
	return nil
}
