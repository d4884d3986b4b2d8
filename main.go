package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bazario/pushgate/global"
	"github.com/bazario/pushgate/logger"
	"github.com/bazario/pushgate/middleware"
	chatmod "github.com/bazario/pushgate/module/chat"
	notifmod "github.com/bazario/pushgate/module/notifications"
	kafkadisp "github.com/bazario/pushgate/service/dispatcher/kafka"
	"github.com/bazario/pushgate/service/gateway"
	"github.com/bazario/pushgate/service/groups"
	"github.com/bazario/pushgate/service/mgo"
	"github.com/bazario/pushgate/service/notify"
	"github.com/bazario/pushgate/service/storage"
)

func main() {
	cfg := global.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// durable state
	mcli, err := mgo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Errorf("mongo: %v", err)
		return
	}
	defer func() { _ = mcli.Close(context.Background()) }()
	chatStore := chatmod.NewStore(mcli.DB())
	notifStore := notifmod.NewStore(mcli.DB())

	// broadcast medium
	rdb, err := storage.NewRedis(ctx, storage.Config{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
	})
	if err != nil {
		logger.Errorf("redis: %v", err)
		return
	}
	registry := groups.NewRegistry(groups.NewRedisBus(rdb))
	defer func() { _ = registry.Close() }()

	presence := storage.NewPresence(rdb, cfg.PresenceTTL)
	resolver := gateway.NewJWTResolver([]byte(cfg.JWTSecret))

	// optional archive feed
	var archive gateway.Archiver
	if len(cfg.KafkaBrokers) > 0 {
		producer, perr := kafkadisp.NewProducer(cfg.KafkaBrokers, cfg.ArchiveTopic)
		if perr != nil {
			logger.Errorf("kafka: %v", perr)
			return
		}
		defer func() { _ = producer.Close() }()
		archive = producer
	}

	// live push for server-originated domain events
	publisher := notify.NewPublisher(notifStore, registry, cfg.StepTimeout)
	consumer, err := notify.NewConsumer(cfg.NatsURL, cfg.GatewayID, publisher)
	if err != nil {
		// push is best-effort; the pull API still works without the bus
		logger.Errorf("nats unavailable, live notifications disabled: %v", err)
	} else {
		if err := consumer.Start(); err != nil {
			logger.Errorf("nats consume: %v", err)
		}
		defer func() { _ = consumer.Close() }()
	}

	// gateway-originated events go out on the same bus the consumer reads
	var events gateway.EventSink
	eventProducer, err := notify.NewProducer(cfg.NatsURL, cfg.GatewayID+"-events")
	if err != nil {
		logger.Errorf("nats producer unavailable, message notifications disabled: %v", err)
	} else {
		defer func() { _ = eventProducer.Close() }()
		events = eventProducer
	}

	gw := gateway.NewServer(gateway.Config{
		GatewayID:   cfg.GatewayID,
		Resolver:    resolver,
		Registry:    registry,
		Oracle:      chatStore,
		Messages:    chatStore,
		Presence:    presence,
		Archive:     archive,
		Events:      events,
		StepTimeout: cfg.StepTimeout,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws/chat", gw.HandleChatWS)
	r.GET("/ws/notifications", gw.HandleNotificationsWS)

	api := r.Group("/api", middleware.Auth(resolver))
	notifmod.NewHandler(notifStore).Register(api)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		logger.Infof("[http] %s listening on %s", cfg.GatewayID, cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
}
