package main

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/consent"
	"nestegg/internal/domain/institution"
	"nestegg/internal/domain/ledger"
	"nestegg/internal/domain/networth"
	"nestegg/internal/domain/notification"
	syncdomain "nestegg/internal/domain/sync"
	"nestegg/internal/domain/user"
	"nestegg/internal/infrastructure/bankdata"
	"nestegg/internal/infrastructure/firebase"
	"nestegg/internal/infrastructure/postgres"
	"nestegg/internal/infrastructure/queue"
	httphandlers "nestegg/internal/interfaces/http"
	"nestegg/internal/interfaces/worker"
	"nestegg/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *redis.Client

	// Handlers
	UserHandler        *httphandlers.UserHandler
	ConsentHandler     *httphandlers.ConsentHandler
	AccountHandler     *httphandlers.AccountHandler
	SyncHandler        *httphandlers.SyncHandler
	InstitutionHandler *httphandlers.InstitutionHandler
	NetWorthHandler    *httphandlers.NetWorthHandler

	// Background components
	Orchestrator *syncdomain.Orchestrator
	Consumer     *worker.Consumer
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("Connected to Redis")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	agreementRepo := postgres.NewAgreementRepository(db)
	requisitionRepo := postgres.NewRequisitionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	institutionRepo := postgres.NewInstitutionRepository(db)

	// Upstream aggregator client
	provider := bankdata.NewClient(cfg.BankData.BaseURL, cfg.BankData.Token)

	// Push notifications (optional)
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, userRepo.ClearDeviceToken)
		if err != nil {
			log.Printf("Warning: Failed to initialize Firebase messaging: %v", err)
		} else {
			messenger = fcm
		}
	} else {
		log.Println("Firebase credentials not configured, push notifications disabled")
	}

	// Queue
	q := queue.New(redisClient)

	// Domain services
	userService := user.NewService(userRepo)
	consentService := consent.NewService(provider, agreementRepo, requisitionRepo)
	accountService := account.NewService(accountRepo, provider)
	ledgerService := ledger.NewService(transactionRepo, accountRepo, provider)
	institutionService := institution.NewService(institutionRepo, provider, cfg.Institution.CacheMaxAgeDays)
	networthService := networth.NewService(accountRepo)

	// Sync pipeline
	orchestrator := syncdomain.NewOrchestrator(requisitionRepo, accountRepo, provider, q)
	syncer := syncdomain.NewAccountSyncer(accountRepo, userRepo, provider, ledgerService, q, messenger, cfg.Sync.HistoryDays)

	consumer := worker.NewConsumer(q, cfg.Sync.Workers, cfg.Sync.MaxAttempts, cfg.Sync.JobTimeout, worker.Subscriptions(syncer)...)

	return &Dependencies{
		DB:                 db,
		Redis:              redisClient,
		UserHandler:        httphandlers.NewUserHandler(userService),
		ConsentHandler:     httphandlers.NewConsentHandler(consentService),
		AccountHandler:     httphandlers.NewAccountHandler(accountService, ledgerService),
		SyncHandler:        httphandlers.NewSyncHandler(orchestrator),
		InstitutionHandler: httphandlers.NewInstitutionHandler(institutionService),
		NetWorthHandler:    httphandlers.NewNetWorthHandler(networthService),
		Orchestrator:       orchestrator,
		Consumer:           consumer,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
