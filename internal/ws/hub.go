package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub is the room broadcaster. One lock serializes all membership
// mutation: the copycat eviction in Join is a single critical section, so
// two connections for the same (session, user) can never transiently
// coexist. A session id has an entry iff at least one connection is joined.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*ConnContext]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[int64]map[*ConnContext]struct{})}
}

// Join admits cc into its session's room. Any existing member with the
// same user id is the copycat's predecessor: it is tombstoned and removed
// before cc is inserted, atomically. The returned member list is computed
// after both steps. ok is false when cc itself carries a tombstone.
func (h *Hub) Join(cc *ConnContext) (evicted *ConnContext, members []UserInfo, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cc.Evicted() {
		return nil, nil, false
	}

	r := h.rooms[cc.SessionID]
	if r == nil {
		r = make(map[*ConnContext]struct{})
		h.rooms[cc.SessionID] = r
	}
	for m := range r {
		if m.UserID == cc.UserID {
			evicted = m
			m.markEvicted()
			delete(r, m)
			break
		}
	}
	r[cc] = struct{}{}
	return evicted, snapshotUsers(r), true
}

// Leave removes cc from its room and reports the member list computed
// after removal. It is a no-op for a connection already evicted by Join.
func (h *Hub) Leave(cc *ConnContext) (members []UserInfo, removed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.rooms[cc.SessionID]
	if r == nil {
		return nil, false
	}
	if _, present := r[cc]; !present {
		return nil, false
	}
	delete(r, cc)
	cc.markEvicted()
	if len(r) == 0 {
		delete(h.rooms, cc.SessionID)
		return []UserInfo{}, true
	}
	return snapshotUsers(r), true
}

// Emit sends event to every member of the session's room, optionally
// excluding one connection. Delivery is best-effort per recipient: a
// failed write closes that connection and never aborts the others or
// surfaces to the caller.
func (h *Hub) Emit(sessionID int64, event string, body any, exclude *ConnContext) {
	env := newEnvelope(event, body)
	for _, cc := range h.snapshot(sessionID, exclude, false) {
		h.deliver(cc, env)
	}
}

// EmitToMaster sends event to the game-master connections of the room only.
func (h *Hub) EmitToMaster(sessionID int64, event string, body any) {
	env := newEnvelope(event, body)
	for _, cc := range h.snapshot(sessionID, nil, true) {
		h.deliver(cc, env)
	}
}

// EmitTo sends event to a single connection.
func (h *Hub) EmitTo(cc *ConnContext, event string, body any) {
	h.deliver(cc, newEnvelope(event, body))
}

// Counts reports the number of active rooms and the sum of their member
// counts, for the statistics service.
func (h *Hub) Counts() (rooms, members int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, r := range h.rooms {
		rooms++
		members += len(r)
	}
	return rooms, members
}

// snapshot copies the target set under the read lock; I/O happens outside.
func (h *Hub) snapshot(sessionID int64, exclude *ConnContext, masterOnly bool) []*ConnContext {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r := h.rooms[sessionID]
	targets := make([]*ConnContext, 0, len(r))
	for cc := range r {
		if cc == exclude {
			continue
		}
		if masterOnly && !cc.IsMaster {
			continue
		}
		targets = append(targets, cc)
	}
	return targets
}

func (h *Hub) deliver(cc *ConnContext, env Envelope) {
	if err := cc.conn.writeJSON(env); err != nil {
		zap.L().Warn("ws_deliver",
			zap.Int64("sessionId", cc.SessionID),
			zap.Int64("userId", cc.UserID),
			zap.Error(err))
		// The reader loop notices the closed socket and runs the normal
		// leave flow.
		_ = cc.conn.close()
	}
}

func snapshotUsers(r map[*ConnContext]struct{}) []UserInfo {
	users := make([]UserInfo, 0, len(r))
	for cc := range r {
		users = append(users, cc.UserInfo())
	}
	return users
}
