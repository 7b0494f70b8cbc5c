// Package main provides the multiplayer relay server: it serves the static
// client and relays player state and chat between players sharing a room.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/flapper/internal/config"
	"github.com/cory-johannsen/flapper/internal/game/room"
	"github.com/cory-johannsen/flapper/internal/observability"
	"github.com/cory-johannsen/flapper/internal/relay"
	"github.com/cory-johannsen/flapper/internal/server"
	"github.com/cory-johannsen/flapper/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and environment only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting relay server",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("default_room", cfg.Room.DefaultRoom),
	)

	metrics := observability.NewMetrics()
	registry := room.NewRegistry(
		room.WithDefaults(roomDefaults(cfg.Room.Defaults)),
		room.WithJoinDelay(cfg.Room.JoinDelay),
		room.WithLogger(logger.Named("rooms")),
		room.WithObserver(metrics),
	)
	svc := relay.NewService(registry, logger.Named("relay"),
		relay.WithMetrics(metrics),
		relay.WithDefaultRoom(cfg.Room.DefaultRoom),
		relay.WithOutboxSize(cfg.WebSocket.SendBuffer),
	)
	httpServer := ws.NewServer(cfg.HTTP, cfg.WebSocket, svc, logger.Named("http"),
		ws.WithMetricsHandler(metrics.Handler()),
	)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("http", &server.FuncService{
		StartFn: httpServer.ListenAndServe,
		StopFn:  httpServer.Stop,
	})

	logger.Info("relay server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func roomDefaults(p config.PhysicsConfig) room.Config {
	return room.Config{
		Gravity:         p.Gravity,
		FlapVelocity:    p.FlapVelocity,
		PipeSpeed:       p.PipeSpeed,
		Gap:             p.Gap,
		SpawnIntervalMs: p.SpawnIntervalMs,
		GroundY:         p.GroundY,
		WorldWidth:      p.WorldWidth,
		WorldHeight:     p.WorldHeight,
	}
}
