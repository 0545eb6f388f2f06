package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nearwave/geocampaign/internal/config"
	"github.com/nearwave/geocampaign/internal/handlers"
	"github.com/nearwave/geocampaign/internal/queue"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/nearwave/geocampaign/internal/services"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/nearwave/geocampaign/pkg/pg"
	"github.com/nearwave/geocampaign/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	dispatchQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().DispatchQueueName,
		ConsumerGroup:     config.Get().DispatchConsumerGroup,
		ConsumerName:      config.Get().DispatchConsumerName,
		MaxRetries:        config.Get().DispatchMaxRetries,
		VisibilityTimeout: config.Get().DispatchVisibilityTimeout,
		PollInterval:      config.Get().DispatchPollInterval,
		BatchSize:         config.Get().DispatchBatchSize,
		MaxLen:            config.Get().DispatchQueueMaxLen,
		EnableDLQ:         config.Get().DispatchEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating dispatch queue", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	locationRepo := repository.NewTargetingLocationRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	// services
	campaignService := services.NewCampaignService(campaignRepo, locationRepo, dispatchQ, redisAdap, config.Get().DispatchSendLockTTL)
	locationService := services.NewTargetingLocationService(locationRepo, campaignRepo, customerRepo)
	customerService := services.NewCustomerService(customerRepo)
	deliveryService := services.NewDeliveryService(deliveryRepo)
	dashboardService := services.NewDashboardService(customerRepo, campaignRepo, locationRepo, deliveryRepo, locationRepo, customerRepo)
	imageService := services.NewImageService(config.Get().UploadDir, config.Get().UploadBaseURL, config.Get().UploadMaxSizeBytes)
	healthService := services.NewHealthService(db)

	// v1 handlers
	campaignHandler := handlers.NewCampaignHandler(campaignService, deliveryService)
	locationHandler := handlers.NewTargetingLocationHandler(locationService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	deliveryHandler := handlers.NewDeliveryHandler(deliveryService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, campaignService, deliveryService)
	imageHandler := handlers.NewImageHandler(imageService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterTargetingLocationRoutes(g, locationHandler)
	handlers.RegisterCustomerRoutes(g, customerHandler)
	handlers.RegisterDeliveryRoutes(g, deliveryHandler)
	handlers.RegisterDashboardRoutes(g, dashboardHandler)
	handlers.RegisterImageRoutes(g, imageHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// uploaded campaign images are served straight off disk
	s.Router.ServeFiles(config.Get().UploadBaseURL+"/{filepath:*}", config.Get().UploadDir)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
