package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-medbox/internal/advisor"
	"wisefido-medbox/internal/cache"
	"wisefido-medbox/internal/config"
	"wisefido-medbox/internal/consumer"
	httpapi "wisefido-medbox/internal/http"
	"wisefido-medbox/internal/projector"
	"wisefido-medbox/internal/questionnaire"
	"wisefido-medbox/internal/repository"
	"wisefido-medbox/internal/store"
	"wisefido-medbox/owl-common/database"
	mqttcommon "wisefido-medbox/owl-common/mqtt"
	rediscommon "wisefido-medbox/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MedboxService owns every connection and the HTTP server
type MedboxService struct {
	config      *config.Config
	logger      *zap.Logger
	mongoClient *mongo.Client
	readings    *repository.SensorReadingRepository
	redisClient *redis.Client
	db          *sql.DB
	mqttClient  *mqttcommon.Client
	consumer    *consumer.ReadingConsumer
	history     *HistoryService
	server      *Server
}

// NewMedboxService connects to MongoDB (required), Redis, PostgreSQL and MQTT
// (optional) and builds the HTTP routes.
func NewMedboxService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*MedboxService, error) {
	mongoClient, err := database.NewMongoClient(ctx, &cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	readings := repository.NewSensorReadingRepository(database.MongoCollection(mongoClient, &cfg.Mongo), logger)
	if err := readings.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure sensor indexes", zap.Error(err))
	}

	s := &MedboxService{
		config:      cfg,
		logger:      logger,
		mongoClient: mongoClient,
		readings:    readings,
	}

	// Redis backs the history cache, questionnaire sessions and the ingestion stream.
	// Without it the service keeps running on an in-process store.
	var kv store.KV
	var publisher consumer.EventPublisher
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		logger.Warn("Redis unavailable, using in-memory store", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = redisClient.Close()
		kv = store.NewMemoryKV()
	} else {
		s.redisClient = redisClient
		kv = store.NewRedisKV(redisClient)
		publisher = rediscommon.NewStreamPublisher(redisClient)
	}

	var recorder questionnaire.ConsultationRecorder
	var consultations httpapi.ConsultationLister
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			logger.Warn("Consultation log disabled, database unavailable", zap.Error(err))
		} else {
			s.db = db
			consultationRepo := repository.NewConsultationRepository(db, logger)
			recorder = consultationRepo
			consultations = consultationRepo
		}
	}

	var historyCache *cache.HistoryCache
	if cfg.History.CacheTTL > 0 {
		historyCache = cache.NewHistoryCache(kv, cfg.History.CacheTTL, logger)
	}
	s.history = NewHistoryService(readings, cfg.History.Ordering, historyCache, cfg.History.FetchTimeout, logger)

	advisorClient := advisor.NewClient(advisor.Config{
		BaseURL:    cfg.Advisor.BaseURL,
		APIKey:     cfg.Advisor.APIKey,
		Model:      cfg.Advisor.Model,
		Timeout:    cfg.Advisor.Timeout,
		RetryCount: cfg.Advisor.RetryCount,
	}, logger)
	flow := questionnaire.NewFlow(kv, advisorClient, advisorClient, recorder, cfg.Session.TTL, logger)

	if cfg.MQTT.Enabled {
		s.consumer = consumer.NewReadingConsumer(consumer.Config{
			Topic:        cfg.MQTT.Topic,
			QoS:          cfg.MQTT.QoS,
			Stream:       cfg.MQTT.Stream,
			WriteTimeout: 5 * time.Second,
		}, readings, publisher, logger)
	}

	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoute()
	router.RegisterSensorRoutes(httpapi.NewSensorHandler(
		s.history,
		cfg.History.Limit,
		projector.HoursOffset(cfg.History.TZOffsetHours),
		logger,
	))
	router.RegisterQuestionnaireRoutes(httpapi.NewQuestionnaireHandler(flow, consultations, logger))
	s.server = NewServer(cfg.HTTP.Addr, router, logger)

	return s, nil
}

// Start connects MQTT ingestion (if enabled) and blocks serving HTTP
func (s *MedboxService) Start(ctx context.Context) error {
	if s.consumer != nil {
		client, err := mqttcommon.NewClient(&s.config.MQTT.MQTTConfig, s.logger)
		if err != nil {
			s.logger.Error("MQTT ingestion disabled", zap.Error(err))
		} else {
			s.mqttClient = client
			if err := s.consumer.Start(client); err != nil {
				return fmt.Errorf("failed to start reading consumer: %w", err)
			}
		}
	}

	s.logger.Info("wisefido-medbox started",
		zap.String("mongo_collection", s.config.Mongo.Collection),
		zap.String("ordering", string(s.config.History.Ordering)),
		zap.Bool("mqtt", s.mqttClient != nil),
	)
	return s.server.Start()
}

// Stop shuts down HTTP first, then ingestion, then the stores
func (s *MedboxService) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	if s.mqttClient != nil {
		if err := s.consumer.Stop(s.mqttClient); err != nil {
			s.logger.Warn("Failed to stop reading consumer", zap.Error(err))
		}
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if err := s.mongoClient.Disconnect(shutdownCtx); err != nil {
		s.logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		return err
	}

	s.logger.Info("wisefido-medbox stopped")
	return nil
}
