package ws

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/services/character"
)

// ConnContext is the per-connection state: exactly one per live websocket,
// never shared between connections. Everything mutable behind it goes
// through a method; handlers never poke fields ad hoc.
type ConnContext struct {
	ID          string // connection id, unique per websocket
	UserID      int64
	Name        string
	IsMaster    bool
	SessionID   int64
	CharacterID int64 // 0 for the game master

	conn sender

	mu        sync.Mutex
	character *character.Character
	evicted   bool
}

func newConnContext(conn sender, id auth.Identity, sessionID int64, isMaster bool, characterID int64) *ConnContext {
	return &ConnContext{
		ID:          uuid.NewString(),
		UserID:      id.UserID,
		Name:        id.Name,
		IsMaster:    isMaster,
		SessionID:   sessionID,
		CharacterID: characterID,
		conn:        conn,
	}
}

func (cc *ConnContext) UserInfo() UserInfo {
	return UserInfo{ID: cc.UserID, Name: cc.Name, IsMaster: cc.IsMaster}
}

// Character returns the lazily cached character, or nil before the first
// fetch.
func (cc *ConnContext) Character() *character.Character {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.character
}

func (cc *ConnContext) SetCharacter(ch *character.Character) {
	cc.mu.Lock()
	cc.character = ch
	cc.mu.Unlock()
}

// markEvicted is the tombstone: once set, the context can never re-enter
// room membership, even if one of its handlers is still mid-flight.
func (cc *ConnContext) markEvicted() {
	cc.mu.Lock()
	cc.evicted = true
	cc.mu.Unlock()
}

func (cc *ConnContext) Evicted() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.evicted
}

func (cc *ConnContext) send(event string, body any) error {
	return cc.conn.writeJSON(newEnvelope(event, body))
}
