package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/dice"
	"github.com/cthunline/cthunline-api-sub001/internal/services/asset"
	"github.com/cthunline/cthunline-api-sub001/internal/services/character"
	"github.com/cthunline/cthunline-api-sub001/internal/services/note"
	"github.com/cthunline/cthunline-api-sub001/internal/services/session"
)

const handlerTimeout = 5 * time.Second

type WsServer struct {
	hub    *Hub
	router *Router
	codec  *auth.TokenCodec
	engine *dice.Engine

	sessionSvc   *session.Service
	noteSvc      *note.Service
	characterSvc *character.Service
	assetSvc     *asset.Service

	upgrader websocket.Upgrader
}

func NewWsServer(
	hub *Hub,
	codec *auth.TokenCodec,
	engine *dice.Engine,
	sessionSvc *session.Service,
	noteSvc *note.Service,
	characterSvc *character.Service,
	assetSvc *asset.Service,
) *WsServer {
	srv := &WsServer{
		hub:          hub,
		router:       NewRouter(),
		codec:        codec,
		engine:       engine,
		sessionSvc:   sessionSvc,
		noteSvc:      noteSvc,
		characterSvc: characterSvc,
		assetSvc:     assetSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle authenticates the handshake, admits the connection into its room
// and starts the reader. An authentication failure aborts before any
// membership is registered.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	ctx := ginCtx.Request.Context()

	token, _ := ginCtx.Cookie(auth.CookieName)
	identity, err := s.codec.Decode(token)
	if err != nil {
		ginCtx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sessionID, err := strconv.ParseInt(ginCtx.Query("sessionId"), 10, 64)
	if err != nil || sessionID <= 0 {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	sess, err := s.sessionSvc.Get(ctx, sessionID)
	if err != nil {
		zap.L().Error("ws_session_lookup", zap.Error(err))
		ginCtx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if sess == nil {
		ginCtx.JSON(http.StatusForbidden, gin.H{"error": "session does not exist"})
		return
	}
	isMaster := identity.UserID == sess.MasterID

	var characterID int64
	if q := ginCtx.Query("characterId"); q != "" {
		characterID, err = strconv.ParseInt(q, 10, 64)
		if err != nil || characterID <= 0 {
			ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "invalid characterId"})
			return
		}
		ch, err := s.characterSvc.Get(ctx, characterID)
		if err != nil {
			zap.L().Error("ws_character_lookup", zap.Error(err))
			ginCtx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if ch == nil || ch.UserID != identity.UserID {
			ginCtx.JSON(http.StatusForbidden, gin.H{"error": "not your character"})
			return
		}
	} else if !isMaster {
		ginCtx.JSON(http.StatusForbidden, gin.H{"error": "players must join with a character"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws_upgrade", zap.Error(err))
		return
	}

	// ─────────────────── Client joined ────────────────────────
	conn := &clientConn{rawConn: rawConn}
	cc := newConnContext(conn, identity, sessionID, isMaster, characterID)

	evicted, members, ok := s.hub.Join(cc)
	if !ok {
		_ = conn.close()
		return
	}
	if evicted != nil {
		// Copycat: the prior connection was removed inside Join, so the
		// member list it leaves with already excludes it. Close without
		// waiting for the client.
		s.hub.Emit(sessionID, EventLeave,
			presenceBody{User: evicted.UserInfo(), Users: members, IsMaster: evicted.IsMaster}, nil)
		_ = evicted.conn.close()
	}
	s.hub.Emit(sessionID, EventJoin,
		presenceBody{User: cc.UserInfo(), Users: members, IsMaster: cc.IsMaster}, nil)

	s.pushSketch(ctx, cc)

	go s.reader(cc, conn)
	go s.pinger(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

// pushSketch sends the current shared sketch to a freshly joined
// connection, read through the cache.
func (s *WsServer) pushSketch(ctx context.Context, cc *ConnContext) {
	sketch, err := s.sessionSvc.CachedSketch(ctx, cc.SessionID)
	if err != nil {
		zap.L().Warn("ws_sketch_snapshot", zap.Error(err))
		return
	}
	_ = cc.send(EventSketchUpdate,
		sketchBody{User: cc.UserInfo(), IsMaster: cc.IsMaster, Sketch: sketch})
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn) {
	defer func() {
		members, removed := s.hub.Leave(cc)
		if removed {
			// Emitted strictly after removal: the list never includes the
			// departing connection.
			s.hub.Emit(cc.SessionID, EventLeave,
				presenceBody{User: cc.UserInfo(), Users: members, IsMaster: cc.IsMaster}, nil)
		}
		_ = conn.close()
	}()

	conn.rawConn.SetReadLimit(maxMessageSize)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env inboundEnvelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err := s.router.dispatch(ctx, cc, env)
		cancel()

		if err != nil {
			s.sendError(cc, env.Event, err)
		}
	}
}

// sendError reports a handler failure to the originating connection only;
// handler errors never abort the connection or reach other room members.
func (s *WsServer) sendError(cc *ConnContext, event string, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		zap.L().Error("ws_handler",
			zap.String("event", event),
			zap.Int64("sessionId", cc.SessionID),
			zap.Int64("userId", cc.UserID),
			zap.Error(err))
		ae = apperr.Internal()
	}
	_ = cc.send(EventError, errorBody{Error: ae.Kind, Message: ae.Message})
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			_ = conn.close()
			return
		}
	}
}
