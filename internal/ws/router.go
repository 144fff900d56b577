package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, cc *ConnContext, body json.RawMessage) error

// Router keeps a map[event]handler, à-la gin.Engine. Having an explicit
// dispatch table keeps every handler unit-testable without a live socket.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]rawHandler),
		validate: validator.New(),
	}
}

// Register binds an event to a strongly-typed handler. The declared request
// type doubles as the event's inbound schema: it is decoded and validated
// before the handler runs.
func Register[Req any](
	r *Router,
	event string,
	h func(ctx context.Context, cc *ConnContext, req Req) error,
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, cc *ConnContext, body json.RawMessage) error {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return apperr.Validation("malformed %s payload", event)
			}
		}
		if err := r.validate.Struct(&req); err != nil {
			return apperr.Validation("invalid %s payload: %v", event, err)
		}
		return h(ctx, cc, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, cc *ConnContext, env inboundEnvelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return apperr.Validation("unknown event %q", env.Event)
	}
	return h(ctx, cc, env.Body)
}
