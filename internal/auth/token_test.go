package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
)

func testCodec() *TokenCodec {
	return NewTokenCodec(strings.Repeat("k", 32), "")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := testCodec()

	token, err := codec.Encode(Identity{UserID: 7, Name: "alice"})
	require.NoError(t, err)

	id, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
	assert.Equal(t, "alice", id.Name)
}

func TestDecodeMissingToken(t *testing.T) {
	_, err := testCodec().Decode("")

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindAuthentication, ae.Kind)
}

func TestDecodeTamperedToken(t *testing.T) {
	codec := testCodec()
	token, err := codec.Encode(Identity{UserID: 7, Name: "alice"})
	require.NoError(t, err)

	_, err = codec.Decode(token + "tail")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindAuthentication, ae.Kind)
}

func TestDecodeForeignKey(t *testing.T) {
	token, err := testCodec().Encode(Identity{UserID: 7, Name: "alice"})
	require.NoError(t, err)

	other := NewTokenCodec(strings.Repeat("x", 32), "")
	_, err = other.Decode(token)
	assert.Error(t, err)
}
