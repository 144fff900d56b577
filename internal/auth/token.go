package auth

import (
	"errors"

	"github.com/gorilla/securecookie"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
)

// CookieName carries the signed identity on both the REST and websocket
// handshake paths.
const CookieName = "cthunline-token"

var errTokenRejected = errors.New("token rejected")

// Identity is what the signed token resolves to. Issuance happens
// out-of-band; this package only validates.
type Identity struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
}

// TokenCodec validates (and, for tests and tooling, mints) signed identity
// tokens.
type TokenCodec struct {
	sc *securecookie.SecureCookie
}

// NewTokenCodec builds a codec from the configured hash key and optional
// block key. An empty block key yields signed-but-unencrypted tokens.
func NewTokenCodec(hashKey, blockKey string) *TokenCodec {
	var block []byte
	if blockKey != "" {
		block = []byte(blockKey)
	}
	sc := securecookie.New([]byte(hashKey), block)
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &TokenCodec{sc: sc}
}

// Encode mints a signed token for the given identity.
func (c *TokenCodec) Encode(id Identity) (string, error) {
	return c.sc.Encode(CookieName, id)
}

// Decode extracts the identity from a signed token, or rejects it.
func (c *TokenCodec) Decode(token string) (Identity, error) {
	var id Identity
	if token == "" {
		return Identity{}, apperr.Authentication("missing token")
	}
	if err := c.sc.Decode(CookieName, token, &id); err != nil {
		return Identity{}, apperr.Authentication("invalid token")
	}
	if id.UserID <= 0 {
		return Identity{}, apperr.Authentication("invalid token")
	}
	return id, nil
}
