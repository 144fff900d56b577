package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/cache"
	"github.com/cthunline/cthunline-api-sub001/internal/config"
	"github.com/cthunline/cthunline-api-sub001/internal/database/db_client"
	"github.com/cthunline/cthunline-api-sub001/internal/dice"
	"github.com/cthunline/cthunline-api-sub001/internal/http/http_server"
	"github.com/cthunline/cthunline-api-sub001/internal/redis/redis_client"
	"github.com/cthunline/cthunline-api-sub001/internal/services/asset"
	"github.com/cthunline/cthunline-api-sub001/internal/services/character"
	"github.com/cthunline/cthunline-api-sub001/internal/services/note"
	"github.com/cthunline/cthunline-api-sub001/internal/services/session"
	"github.com/cthunline/cthunline-api-sub001/internal/services/statistics"
	"github.com/cthunline/cthunline-api-sub001/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (shared-state cache backend)
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort,
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Shared-state cache + signed-cookie codec
	docCache := cache.New(redisClient, time.Duration(cfg.CacheTtlSeconds)*time.Second)
	codec := auth.NewTokenCodec(cfg.CookieHashKey, cfg.CookieBlockKey)

	// 6. Repository services
	sessionSvc := session.NewService(pgDb, docCache)
	noteSvc := note.NewService(pgDb, docCache)
	characterSvc := character.NewService(pgDb)
	assetSvc := asset.NewService(pgDb)

	// 7. Rooms hub + dice engine + statistics
	hub := ws.NewHub()
	engine := dice.NewEngine()
	statsSvc := statistics.NewService(hub, sessionSvc, characterSvc)

	// 8. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, codec, engine, sessionSvc, noteSvc, characterSvc, assetSvc)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort,
		codec, wsSrv, sessionSvc, noteSvc, statsSvc)

	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()

	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
