package ws

import (
	"encoding/json"
	"time"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
	"github.com/cthunline/cthunline-api-sub001/internal/dice"
	"github.com/cthunline/cthunline-api-sub001/internal/services/asset"
	"github.com/cthunline/cthunline-api-sub001/internal/services/character"
	"github.com/cthunline/cthunline-api-sub001/internal/services/note"
)

const (
	EventJoin            = "join"
	EventLeave           = "leave"
	EventDiceRoll        = "diceRoll"
	EventStressRoll      = "stressRoll"
	EventCharacterUpdate = "characterUpdate"
	EventNoteUpdate      = "noteUpdate"
	EventSketchUpdate    = "sketchUpdate"
	EventAudioPlay       = "audioPlay"
	EventAudioStop       = "audioStop"
	EventError           = "error"
)

// Envelope wraps every outbound frame with a server timestamp so clients
// can order and merge events without trusting transport ordering alone.
type Envelope struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
	Body  any       `json:"body,omitempty"`
}

func newEnvelope(event string, body any) Envelope {
	return Envelope{Event: event, Time: time.Now().UTC(), Body: body}
}

// inboundEnvelope is what clients send.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// UserInfo identifies a room member in presence and result payloads.
type UserInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsMaster bool   `json:"isMaster"`
}

// ──────────────────────────── Request DTOs ─────────────────────────────

type DiceRollRequest struct {
	Rolls []DiceRollEntry `json:"rolls" validate:"required,min=1,max=24,dive"`
}

type DiceRollEntry struct {
	Die     dice.Die `json:"die" validate:"required,oneof=D4 D6 D8 D10 D12 D20 D100"`
	Private bool     `json:"private"`
}

func (r DiceRollRequest) private() bool {
	for _, e := range r.Rolls {
		if e.Private {
			return true
		}
	}
	return false
}

type StressRollRequest struct {
	Dice     int `json:"dice" validate:"min=0,max=24"`
	Stresses int `json:"stresses" validate:"min=0,max=24"`
}

type NoteUpdateRequest struct {
	NoteID int64 `json:"noteId" validate:"required,gt=0"`
}

type SketchUpdateRequest struct {
	Sketch json.RawMessage `json:"sketch" validate:"required"`
}

type AudioPlayRequest struct {
	AssetID int64   `json:"assetId" validate:"required,gt=0"`
	Time    float64 `json:"time" validate:"gte=0"`
}

// ──────────────────────────── Broadcast bodies ─────────────────────────

type presenceBody struct {
	User     UserInfo   `json:"user"`
	Users    []UserInfo `json:"users"`
	IsMaster bool       `json:"isMaster"`
}

type diceResultBody struct {
	User     UserInfo     `json:"user"`
	IsMaster bool         `json:"isMaster"`
	Private  bool         `json:"private"`
	Result   *dice.Result `json:"result"`
}

type stressResultBody struct {
	User     UserInfo           `json:"user"`
	IsMaster bool               `json:"isMaster"`
	Result   *dice.StressResult `json:"result"`
}

type characterBody struct {
	User      UserInfo             `json:"user"`
	IsMaster  bool                 `json:"isMaster"`
	Character *character.Character `json:"character"`
}

type noteBody struct {
	User     UserInfo   `json:"user"`
	IsMaster bool       `json:"isMaster"`
	Note     *note.Note `json:"note"`
}

type sketchBody struct {
	User     UserInfo        `json:"user"`
	IsMaster bool            `json:"isMaster"`
	Sketch   json.RawMessage `json:"sketch"`
}

type audioBody struct {
	User     UserInfo     `json:"user"`
	IsMaster bool         `json:"isMaster"`
	Asset    *asset.Asset `json:"asset,omitempty"`
	Time     float64      `json:"time,omitempty"`
}

type errorBody struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
}
