package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/http/notehandler"
	"github.com/cthunline/cthunline-api-sub001/internal/http/sessionhandler"
	"github.com/cthunline/cthunline-api-sub001/internal/services/note"
	"github.com/cthunline/cthunline-api-sub001/internal/services/session"
	"github.com/cthunline/cthunline-api-sub001/internal/services/statistics"
	"github.com/cthunline/cthunline-api-sub001/internal/ws"
)

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	ctx        context.Context

	codec      *auth.TokenCodec
	wsSrv      *ws.WsServer
	sessionSvc *session.Service
	noteSvc    *note.Service
	statsSvc   *statistics.Service
}

func NewHttpServer(
	ctx context.Context,
	listenPort uint16,
	codec *auth.TokenCodec,
	wsSrv *ws.WsServer,
	sessionSvc *session.Service,
	noteSvc *note.Service,
	statsSvc *statistics.Service,
) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		ctx:        ctx,
		codec:      codec,
		wsSrv:      wsSrv,
		sessionSvc: sessionSvc,
		noteSvc:    noteSvc,
		statsSvc:   statsSvc,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint; it performs its own handshake auth
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API behind the signed-cookie middleware
	api := routerEngine.Group("/", auth.Middleware(h.codec))
	sessionhandler.New(h.sessionSvc, h.statsSvc).Register(api)
	notehandler.New(h.noteSvc).Register(api)

	h.srv = http.Server{
		Handler: routerEngine,
	}

	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}

	return nil
}
