package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ward-discharge/internal/config"
	"ward-discharge/internal/database"
	"ward-discharge/internal/docstore"
	"ward-discharge/internal/events"
	httpapi "ward-discharge/internal/http"
	"ward-discharge/internal/logger"
	"ward-discharge/internal/mqtt"
	"ward-discharge/internal/repository"
	"ward-discharge/internal/service"
	"ward-discharge/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ward-discharge")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()

	health := httpapi.NewHealthHandler(lg)

	// Document store: postgres when reachable, otherwise in-memory (dev)
	var db *sql.DB
	var docs docstore.Store
	if cfg.Store.Backend == "postgres" {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			pg := docstore.NewPostgresStore(d)
			if err := pg.EnsureSchema(context.Background()); err != nil {
				lg.Warn("document schema bootstrap failed, falling back to memory store", zap.Error(err))
				_ = d.Close()
			} else {
				db = d
				docs = pg
				health.Add("postgres", d.PingContext)
				lg.Info("DB enabled for ward-discharge")
			}
		} else {
			lg.Warn("DB connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if docs == nil {
		docs = docstore.NewMemoryStore()
	}
	repo := repository.NewDocPatientsRepo(docs)

	// 内存模式下写入演示病区数据
	if cfg.SeedDemo && db == nil {
		if err := repository.SeedDemoWard(context.Background(), repo, time.Now().UTC()); err != nil {
			lg.Warn("demo ward seed failed", zap.Error(err))
		} else {
			lg.Info("demo ward seeded", zap.String("requester_id", repository.DemoRequesterID))
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	health.Add("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })

	lock := store.NewDecisionLock(store.NewRedisKV(redisClient), cfg.Discharge.DecisionLockTTL, lg)

	var publishers []events.Publisher
	if cfg.Events.Enabled {
		publishers = append(publishers, events.NewStreamPublisher(redisClient, cfg.Events.Stream))
	}
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT, lg)
		if err != nil {
			lg.Warn("MQTT connect failed, ward display updates disabled", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
			publishers = append(publishers, events.NewMQTTPublisher(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS))
		}
	}

	svc := service.NewDischargeService(repo, repo, lock, events.NewMultiPublisher(lg, publishers...), lg)

	router := httpapi.NewRouter(lg)
	router.RegisterDischargeRoutes(httpapi.NewDischargeHandler(svc, cfg.Discharge.DecisionTimeout, lg))
	router.RegisterHealthRoutes(health)

	srv := service.NewServer(cfg.HTTP.Addr, router, lg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			lg.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	if db != nil {
		_ = db.Close()
	}
}
