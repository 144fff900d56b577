package ws

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/cache"
	"github.com/cthunline/cthunline-api-sub001/internal/dice"
	"github.com/cthunline/cthunline-api-sub001/internal/services/asset"
	"github.com/cthunline/cthunline-api-sub001/internal/services/character"
	"github.com/cthunline/cthunline-api-sub001/internal/services/note"
	"github.com/cthunline/cthunline-api-sub001/internal/services/session"
)

const cacheTTL = time.Hour

func newTestServer(t *testing.T) (*WsServer, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdc, rdMock := redismock.NewClientMock()
	docCache := cache.New(rdc, cacheTTL)
	codec := auth.NewTokenCodec(strings.Repeat("k", 32), "")

	srv := NewWsServer(
		NewHub(),
		codec,
		dice.NewEngine(),
		session.NewService(db, docCache),
		note.NewService(db, docCache),
		character.NewService(db),
		asset.NewService(db),
	)
	return srv, dbMock, rdMock
}

func joinAll(t *testing.T, h *Hub, ccs ...*ConnContext) {
	t.Helper()
	for _, cc := range ccs {
		_, _, ok := h.Join(cc)
		require.True(t, ok)
	}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, kind, ae.Kind)
}

const noteColumns = "id, user_id, session_id, title, text, shared"

func expectNoteLookup(dbMock sqlmock.Sqlmock, rdMock redismock.ClientMock, n note.Note) {
	rdMock.ExpectGet(cache.Key("note", n.ID)).RedisNil()
	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT "+noteColumns)).
		WithArgs(n.ID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "session_id", "title", "text", "shared"}).
			AddRow(n.ID, n.UserID, n.SessionID, n.Title, n.Text, n.Shared))
	raw, _ := json.Marshal(&n)
	rdMock.ExpectSet(cache.Key("note", n.ID), raw, cacheTTL).SetVal("OK")
}

func TestNoteUpdateUnsharedIsForbidden(t *testing.T) {
	srv, dbMock, rdMock := newTestServer(t)
	requester, fcReq := newTestConn(1, "alice", 7, false)
	other, fcOther := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, requester, other)

	expectNoteLookup(dbMock, rdMock, note.Note{
		ID: 10, UserID: 1, SessionID: 7, Title: "secret", Shared: false,
	})

	err := srv.handleNoteUpdate(context.Background(), requester, NoteUpdateRequest{NoteID: 10})
	requireKind(t, err, apperr.KindForbidden)

	// No broadcast to anyone; the reader loop turns the error into an
	// error event for the requester only.
	assert.Equal(t, 0, fcReq.frameCount())
	assert.Equal(t, 0, fcOther.frameCount())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestNoteUpdateNotOwnerIsForbidden(t *testing.T) {
	srv, dbMock, rdMock := newTestServer(t)
	requester, _ := newTestConn(1, "alice", 7, false)
	other, fcOther := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, requester, other)

	expectNoteLookup(dbMock, rdMock, note.Note{
		ID: 11, UserID: 99, SessionID: 7, Title: "else", Shared: true,
	})

	err := srv.handleNoteUpdate(context.Background(), requester, NoteUpdateRequest{NoteID: 11})
	requireKind(t, err, apperr.KindForbidden)
	assert.Equal(t, 0, fcOther.frameCount())
}

func TestNoteUpdateMissingIsNotFound(t *testing.T) {
	srv, dbMock, rdMock := newTestServer(t)
	requester, _ := newTestConn(1, "alice", 7, false)
	joinAll(t, srv.hub, requester)

	rdMock.ExpectGet(cache.Key("note", int64(12))).RedisNil()
	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT " + noteColumns)).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := srv.handleNoteUpdate(context.Background(), requester, NoteUpdateRequest{NoteID: 12})
	requireKind(t, err, apperr.KindNotFound)
}

func TestNoteUpdateBroadcastsToRoomExcludingSender(t *testing.T) {
	srv, dbMock, rdMock := newTestServer(t)
	requester, fcReq := newTestConn(1, "alice", 7, false)
	other, fcOther := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, requester, other)

	expectNoteLookup(dbMock, rdMock, note.Note{
		ID: 13, UserID: 1, SessionID: 7, Title: "plan", Text: "attack at dawn", Shared: true,
	})

	err := srv.handleNoteUpdate(context.Background(), requester, NoteUpdateRequest{NoteID: 13})
	require.NoError(t, err)

	assert.Equal(t, 0, fcReq.frameCount(), "sender excluded from the rebroadcast")
	require.Equal(t, 1, fcOther.frameCount())
	frame := fcOther.lastFrame()
	assert.Equal(t, EventNoteUpdate, frame.Event)
	body := frame.Body.(noteBody)
	assert.Equal(t, int64(13), body.Note.ID)
	assert.Equal(t, int64(1), body.User.ID)
}

func TestAudioPlayNonMasterIsForbidden(t *testing.T) {
	srv, _, _ := newTestServer(t)
	player, fcPlayer := newTestConn(1, "alice", 7, false)
	other, fcOther := newTestConn(2, "bob", 7, true)
	joinAll(t, srv.hub, player, other)

	err := srv.handleAudioPlay(context.Background(), player, AudioPlayRequest{AssetID: 3, Time: 1})
	requireKind(t, err, apperr.KindForbidden)

	assert.Equal(t, 0, fcPlayer.frameCount())
	assert.Equal(t, 0, fcOther.frameCount(), "no room broadcast on forbidden audio")
}

func TestAudioPlayRejectsNonAudioAsset(t *testing.T) {
	srv, dbMock, _ := newTestServer(t)
	master, _ := newTestConn(1, "gm", 7, true)
	joinAll(t, srv.hub, master)

	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, kind, path FROM assets")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "kind", "path"}).
			AddRow(3, 1, "map.png", asset.KindImage, "/a/map.png"))

	err := srv.handleAudioPlay(context.Background(), master, AudioPlayRequest{AssetID: 3})
	requireKind(t, err, apperr.KindForbidden)
}

func TestAudioPlayBroadcasts(t *testing.T) {
	srv, dbMock, _ := newTestServer(t)
	master, fcMaster := newTestConn(1, "gm", 7, true)
	player, fcPlayer := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, master, player)

	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, kind, path FROM assets")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "kind", "path"}).
			AddRow(4, 1, "theme.mp3", asset.KindAudio, "/a/theme.mp3"))

	err := srv.handleAudioPlay(context.Background(), master, AudioPlayRequest{AssetID: 4, Time: 12.5})
	require.NoError(t, err)

	require.Equal(t, 1, fcPlayer.frameCount())
	body := fcPlayer.lastFrame().Body.(audioBody)
	assert.Equal(t, int64(4), body.Asset.ID)
	assert.Equal(t, 12.5, body.Time)
	assert.Equal(t, 1, fcMaster.frameCount(), "audio cues reach the whole room")
}

func TestAudioStopNonMasterIsForbidden(t *testing.T) {
	srv, _, _ := newTestServer(t)
	player, _ := newTestConn(1, "alice", 7, false)
	joinAll(t, srv.hub, player)

	err := srv.handleAudioStop(context.Background(), player, struct{}{})
	requireKind(t, err, apperr.KindForbidden)
}

func TestCharacterUpdateMasterIsForbidden(t *testing.T) {
	srv, _, _ := newTestServer(t)
	master, _ := newTestConn(1, "gm", 7, true)
	joinAll(t, srv.hub, master)

	err := srv.handleCharacterUpdate(context.Background(), master, struct{}{})
	requireKind(t, err, apperr.KindForbidden)
}

func TestCharacterUpdateGoesToMasterOnly(t *testing.T) {
	srv, dbMock, _ := newTestServer(t)
	master, fcMaster := newTestConn(1, "gm", 7, true)
	playerConn := &fakeConn{}
	player := newConnContext(playerConn, auth.Identity{UserID: 2, Name: "bob"}, 7, false, 5)
	bystander, fcBystander := newTestConn(3, "eve", 7, false)
	joinAll(t, srv.hub, master, player, bystander)

	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, data FROM characters")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "data"}).
			AddRow(5, 2, "Ripley", []byte(`{"str":12}`)))

	err := srv.handleCharacterUpdate(context.Background(), player, struct{}{})
	require.NoError(t, err)

	require.Equal(t, 1, fcMaster.frameCount())
	body := fcMaster.lastFrame().Body.(characterBody)
	assert.Equal(t, int64(5), body.Character.ID)
	assert.Equal(t, 0, fcBystander.frameCount(), "character updates go to the master only")

	// The fetched character is cached on the connection context.
	require.NotNil(t, player.Character())
	assert.Equal(t, "Ripley", player.Character().Name)
}

func TestDiceRollBroadcastsResult(t *testing.T) {
	srv, _, _ := newTestServer(t)
	roller, fcRoller := newTestConn(1, "alice", 7, false)
	other, fcOther := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, roller, other)

	err := srv.handleDiceRoll(context.Background(), roller, DiceRollRequest{
		Rolls: []DiceRollEntry{{Die: dice.D20}, {Die: dice.D6}, {Die: dice.D6}},
	})
	require.NoError(t, err)

	require.Equal(t, 1, fcRoller.frameCount(), "public rolls reach the requester too")
	require.Equal(t, 1, fcOther.frameCount())

	body := fcOther.lastFrame().Body.(diceResultBody)
	require.Len(t, body.Result.Rolls, 3)
	assert.Equal(t, dice.D6, body.Result.Rolls[0].Die)
	assert.Equal(t, dice.D20, body.Result.Rolls[2].Die)
	total := 0
	for _, r := range body.Result.Rolls {
		total += r.Value
	}
	assert.Equal(t, total, body.Result.Total)
	assert.False(t, body.Private)
}

func TestPrivateDiceRollGoesToRequesterOnly(t *testing.T) {
	srv, _, _ := newTestServer(t)
	roller, fcRoller := newTestConn(1, "alice", 7, false)
	other, fcOther := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, roller, other)

	err := srv.handleDiceRoll(context.Background(), roller, DiceRollRequest{
		Rolls: []DiceRollEntry{{Die: dice.D20, Private: true}},
	})
	require.NoError(t, err)

	require.Equal(t, 1, fcRoller.frameCount())
	assert.True(t, fcRoller.lastFrame().Body.(diceResultBody).Private)
	assert.Equal(t, 0, fcOther.frameCount())
}

func TestStressRollRequiresAtLeastOneDie(t *testing.T) {
	srv, _, _ := newTestServer(t)
	roller, _ := newTestConn(1, "alice", 7, false)
	joinAll(t, srv.hub, roller)

	err := srv.handleStressRoll(context.Background(), roller, StressRollRequest{})
	requireKind(t, err, apperr.KindValidation)
}

func TestStressRollBroadcasts(t *testing.T) {
	srv, _, _ := newTestServer(t)
	roller, fcRoller := newTestConn(1, "alice", 7, false)
	joinAll(t, srv.hub, roller)

	err := srv.handleStressRoll(context.Background(), roller, StressRollRequest{Dice: 2, Stresses: 3})
	require.NoError(t, err)

	require.Equal(t, 1, fcRoller.frameCount())
	body := fcRoller.lastFrame().Body.(stressResultBody)
	require.Len(t, body.Result.Rolls, 5)
	for i, r := range body.Result.Rolls {
		assert.Equal(t, i >= 2, r.Stress)
	}
}

func TestSketchUpdateNonMasterIsForbidden(t *testing.T) {
	srv, _, _ := newTestServer(t)
	player, _ := newTestConn(1, "alice", 7, false)
	joinAll(t, srv.hub, player)

	err := srv.handleSketchUpdate(context.Background(), player, SketchUpdateRequest{
		Sketch: json.RawMessage(`{}`),
	})
	requireKind(t, err, apperr.KindForbidden)
}

func TestSketchUpdatePersistsAndBroadcasts(t *testing.T) {
	srv, dbMock, rdMock := newTestServer(t)
	master, fcMaster := newTestConn(1, "gm", 7, true)
	player, fcPlayer := newTestConn(2, "bob", 7, false)
	joinAll(t, srv.hub, master, player)

	sketch := json.RawMessage(`{"paths":["M0 0L5 5"]}`)
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET sketch")).
		WithArgs(int64(7), []byte(sketch)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	raw, _ := json.Marshal(sketch)
	rdMock.ExpectSetXX(cache.Key("sketch", int64(7)), raw, cacheTTL).SetVal(true)

	err := srv.handleSketchUpdate(context.Background(), master, SketchUpdateRequest{Sketch: sketch})
	require.NoError(t, err)

	assert.Equal(t, 0, fcMaster.frameCount(), "sender excluded")
	require.Equal(t, 1, fcPlayer.frameCount())
	assert.Equal(t, EventSketchUpdate, fcPlayer.lastFrame().Event)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
