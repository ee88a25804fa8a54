package main

import (
	"context"
	"log"

	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/configs"
	"github.com/musorogski/cucme/internal/infrastructure/credential"
	"github.com/musorogski/cucme/internal/infrastructure/env"
	"github.com/musorogski/cucme/internal/infrastructure/events"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/messaging"
	"github.com/musorogski/cucme/internal/infrastructure/ratelimiter"
	"github.com/musorogski/cucme/internal/infrastructure/tracing"
	"github.com/musorogski/cucme/internal/infrastructure/ws"
	"github.com/musorogski/cucme/internal/persistence/db"
	"github.com/musorogski/cucme/internal/persistence/repository"
	"github.com/musorogski/cucme/internal/presentation/api"
	auditHandler "github.com/musorogski/cucme/internal/presentation/handler/audit"
	"github.com/musorogski/cucme/internal/presentation/handler/health"
	"github.com/musorogski/cucme/internal/registry"
	"github.com/musorogski/cucme/internal/sweeper"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName = "cucme-api"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())
	logger.Init()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Rooms live in Mongo when a URI is configured, otherwise in-process.
	// The in-memory store honors the same versioned-write contract.
	var (
		roomRepository  domain.RoomRepository
		auditRepository domain.RoomAuditRepository
		storePing       health.Pinger
	)

	if mongoURI := env.GetString("MONGODB_URI", ""); mongoURI != "" {
		mongoCfg := db.NewMongoDefaultConfig()
		mongoCfg.URI = mongoURI

		client, err := db.NewMongoClient(ctx, mongoCfg)
		if err != nil {
			log.Fatal(err)
		}
		defer db.DisconnectMongo(context.Background(), client)

		database := db.GetDatabase(client, mongoCfg)
		roomRepository = repository.NewRoomRepository(database)
		auditRepository = repository.NewRoomAuditLogRepository(database)
		storePing = health.PingerFunc(func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		})

		if err := roomRepository.EnsureIndexes(ctx); err != nil {
			log.Fatal(err)
		}
		if err := auditRepository.EnsureIndexes(ctx); err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Info(logging.General, logging.Startup, "MONGODB_URI not set, using in-memory room store", nil)
		roomRepository = repository.NewInMemoryRoomRepository()
	}

	// Lifecycle events flow to RabbitMQ when a broker is configured.
	var roomPublisher *events.RoomPublisher

	if rabbitMqURI := env.GetString("RABBITMQ_URI", ""); rabbitMqURI != "" {
		rabbitmq, err := messaging.NewRabbitMQ(rabbitMqURI)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitmq.Close()

		roomPublisher = events.NewRoomPublisher(rabbitmq)

		if auditRepository != nil {
			auditConsumer := events.NewAuditConsumer(rabbitmq, auditRepository, logger)
			go func() {
				if err := auditConsumer.Listen(); err != nil {
					logger.Error(logging.RabbitMQ, logging.ExternalService, "audit consumer stopped", map[logging.ExtraKey]any{
						logging.ErrorMessage: err.Error(),
					})
				}
			}()
		}
	} else {
		logger.Info(logging.General, logging.Startup, "RABBITMQ_URI not set, lifecycle events disabled", nil)
	}

	hub := ws.NewHub(logger)
	sessions := registry.NewSessionMap()
	guard := credential.NewGuard(cfg.Credential.BcryptCost)

	regOpts := registry.Options{
		Rooms:           roomRepository,
		Guard:           guard,
		Sessions:        sessions,
		Broadcaster:     hub,
		Logger:          logger,
		MaxParticipants: cfg.Room.MaxParticipants,
	}
	if roomPublisher != nil {
		regOpts.Publisher = roomPublisher
	}
	reg := registry.New(regOpts)

	sweepOpts := sweeper.Options{
		Rooms:    roomRepository,
		Logger:   logger,
		Interval: cfg.Room.SweepInterval,
	}
	if roomPublisher != nil {
		sweepOpts.Publisher = roomPublisher
	}
	go sweeper.New(sweepOpts).Run(ctx)

	wsHandler := ws.NewHandler(hub, reg, logger, cfg.HTTP.AllowedOrigins)
	healthHandler := health.NewHandler(storePing)

	var auditH *auditHandler.Handler
	if auditRepository != nil {
		auditH = auditHandler.NewHandler(auditRepository)
	}

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	app := api.NewApplication(*cfg, wsHandler, healthHandler, auditH, logger, rl)

	mux := otelhttp.NewHandler(app.Mount(), "http.server")
	if err := app.Run(mux); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
