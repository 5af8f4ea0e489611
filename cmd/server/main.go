package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ragchat/config"
	"ragchat/infra/cache"
	"ragchat/infra/queue"
	"ragchat/infra/storage"
	"ragchat/internal/auth"
	"ragchat/internal/chat"
	"ragchat/internal/handler"
	"ragchat/internal/llm"
	"ragchat/internal/query"
	"ragchat/internal/quota"
	"ragchat/internal/retrieval"
	"ragchat/internal/rotator"
	"ragchat/pkg/registry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := storage.NewPostgresConn(&cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()
	if err := db.CreateTables(); err != nil {
		log.Fatal("migrate schema", zap.Error(err))
	}

	userRepo := storage.NewUserRepository(db)
	sessionRepo := storage.NewSessionRepository(db)
	messageRepo := storage.NewMessageRepository(db)
	documentRepo := storage.NewDocumentRepository(db)

	// Redis is optional: without it the QPS limiter is simply not mounted.
	var redisCache *cache.RedisCache
	if rc, err := cache.NewRedisCache(&cfg.Redis); err != nil {
		log.Warn("redis unavailable, QPS limiter disabled", zap.Error(err))
	} else {
		redisCache = rc
		defer redisCache.Close()
	}

	credentials := cfg.LLM.Credentials()
	if len(credentials) == 0 {
		log.Warn("no LLM credentials configured, generation will fail over to fixed answers")
	}

	gate := quota.NewGate(userRepo, cfg.Quota.RegisteredLimit, cfg.Quota.AnonymousLimit, cfg.Quota.ResetWindow)
	dispatch := rotator.New(llm.NewGenerator(cfg.LLM), credentials, cfg.LLM.MaxAttempts, log)
	store := chat.NewStore(sessionRepo, messageRepo, log)
	retriever := retrieval.NewRetriever(documentRepo, log)
	ingestor := retrieval.NewIngestor(documentRepo, log)

	jwtService := auth.NewJWTService(cfg.Auth.JwtSecret, cfg.Auth.ExpireHours)
	authService := auth.NewService(userRepo, jwtService, cfg.Quota.ResetWindow)

	var orchestratorOpts []query.Option
	var producer *queue.Producer
	if cfg.RocketMQ.Enabled {
		producer, err = queue.NewProducer(cfg.RocketMQ.NameServers, cfg.RocketMQ.GroupName,
			cfg.RocketMQ.MaxRetries, cfg.RocketMQ.Topics.QueryEvent, log)
		if err != nil {
			log.Warn("rocketmq unavailable, query events disabled", zap.Error(err))
		} else {
			defer producer.Stop()
			orchestratorOpts = append(orchestratorOpts, query.WithEvents(producer))
		}
	}

	orchestrator := query.NewOrchestrator(gate, retriever, dispatch, store, log, orchestratorOpts...)

	router := handler.NewRouter(cfg, authService, redisCache, handler.Handlers{
		Auth:   handler.NewAuthHandler(authService, log),
		Query:  handler.NewQueryHandler(orchestrator, cfg.Retrieval.DefaultK, log),
		Chat:   handler.NewChatHandler(store, log),
		Ingest: handler.NewIngestHandler(ingestor, cfg.Retrieval.DataDir, log),
		Health: handler.NewHealthHandler(cfg, redisCache, documentRepo, len(credentials)),
	}, log)

	var registrar *registry.Registrar
	if cfg.Consul.Enabled {
		registrar, err = registry.NewRegistrar(registry.Options{
			Address:     cfg.Consul.Address,
			Scheme:      cfg.Consul.Scheme,
			Datacenter:  cfg.Consul.Datacenter,
			ServiceName: cfg.ServerName,
			ServicePort: cfg.Port,
			Tags:        []string{cfg.ServerName, "api", "v1"},
		}, log)
		if err != nil {
			log.Warn("consul registration failed", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	if registrar != nil {
		registrar.Deregister()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}

func buildLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
