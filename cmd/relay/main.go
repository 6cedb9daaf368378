package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/backend"
	chathttp "github.com/AlibekovAA/booking-chat-relay/internal/chat/http"
	"github.com/AlibekovAA/booking-chat-relay/internal/chat/session"
	"github.com/AlibekovAA/booking-chat-relay/internal/chat/websocket"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/clock"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/config"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	srv "github.com/AlibekovAA/booking-chat-relay/internal/common/server"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/tracing"
)

func main() {
	cfg, err := config.LoadRelayConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogDir, "relay", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, "booking-chat-relay", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	gateway := backend.NewHTTPGateway(backend.HTTPGatewayConfig{
		BaseURL:       cfg.BackendURL,
		Timeout:       cfg.Backend.Timeout,
		RetryMaxTries: cfg.Backend.RetryMaxTries,
		RetryMaxDelay: cfg.Backend.RetryMaxDelay,
		CBThreshold:   cfg.Backend.CBThreshold,
		CBReset:       cfg.Backend.CBReset,
		Logger:        log,
	})

	hub := websocket.NewHub(log, session.NewMemoryRegistry(), gateway, clock.NewRealClock(), websocket.HubConfig{
		ProcessorWorkers:   cfg.Processor.Workers,
		ProcessorQueueSize: cfg.Processor.QueueSize,
		ProcessorTimeout:   cfg.Processor.Timeout,
	})

	handler := chathttp.NewHandler(hub, chathttp.Config{
		ClientURL: cfg.ClientURL,
		Client: websocket.ClientConfig{
			WriteWait:   cfg.WebSocket.WriteWait,
			PongWait:    cfg.WebSocket.PongWait,
			PingPeriod:  cfg.WebSocket.PingPeriod,
			MaxMsgSize:  cfg.WebSocket.MaxMsgSize,
			SendBufSize: cfg.WebSocket.SendBufSize,
		},
		HandshakeRPS:   cfg.WebSocket.HandshakeRPS,
		HandshakeBurst: cfg.WebSocket.HandshakeBurst,
	}, log)

	serverCfg := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverCfg, handler)

	log.WithFields(ctx, logger.Fields{
		"port":        cfg.HTTPPort,
		"backend_url": cfg.BackendURL,
		"client_url":  cfg.ClientURL,
		"action":      "relay_start",
	}).Info("booking chat relay starting")

	if err := srv.Run(ctx, server, serverCfg, log, "relay", hub.Shutdown, shutdownTracing); err != nil {
		log.Fatalf("relay stopped with error: %v", err)
	}
}
