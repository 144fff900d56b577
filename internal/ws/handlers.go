package ws

import (
	"context"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
	"github.com/cthunline/cthunline-api-sub001/internal/dice"
	"github.com/cthunline/cthunline-api-sub001/internal/services/asset"
)

func (s *WsServer) registerHandlers() {
	Register(s.router, EventDiceRoll, s.handleDiceRoll)
	Register(s.router, EventStressRoll, s.handleStressRoll)
	Register(s.router, EventCharacterUpdate, s.handleCharacterUpdate)
	Register(s.router, EventNoteUpdate, s.handleNoteUpdate)
	Register(s.router, EventSketchUpdate, s.handleSketchUpdate)
	Register(s.router, EventAudioPlay, s.handleAudioPlay)
	Register(s.router, EventAudioStop, s.handleAudioStop)
}

// handleDiceRoll resolves the request and broadcasts the result. The engine
// always computes the full result; withholding it for private rolls is
// decided here, at the broadcast boundary.
func (s *WsServer) handleDiceRoll(ctx context.Context, cc *ConnContext, req DiceRollRequest) error {
	rolls := make([]dice.Roll, len(req.Rolls))
	for i, e := range req.Rolls {
		rolls[i] = dice.Roll{Die: e.Die, Private: e.Private}
	}
	result, err := s.engine.Resolve(rolls)
	if err != nil {
		return err
	}

	body := diceResultBody{
		User:     cc.UserInfo(),
		IsMaster: cc.IsMaster,
		Private:  req.private(),
		Result:   result,
	}
	if body.Private {
		s.hub.EmitTo(cc, EventDiceRoll, body)
		return nil
	}
	s.hub.Emit(cc.SessionID, EventDiceRoll, body, nil)
	return nil
}

func (s *WsServer) handleStressRoll(ctx context.Context, cc *ConnContext, req StressRollRequest) error {
	if req.Dice+req.Stresses < 1 {
		return apperr.Validation("at least one die is required")
	}
	result, err := s.engine.ResolveStress(req.Dice, req.Stresses)
	if err != nil {
		return err
	}
	s.hub.Emit(cc.SessionID, EventStressRoll, stressResultBody{
		User:     cc.UserInfo(),
		IsMaster: cc.IsMaster,
		Result:   result,
	}, nil)
	return nil
}

// handleCharacterUpdate re-fetches the sender's character and forwards it
// to the game master only.
func (s *WsServer) handleCharacterUpdate(ctx context.Context, cc *ConnContext, _ struct{}) error {
	if cc.IsMaster {
		return apperr.Forbidden("the game master has no character")
	}
	ch, err := s.characterSvc.Get(ctx, cc.CharacterID)
	if err != nil {
		return err
	}
	if ch == nil {
		return apperr.NotFound("character %d not found", cc.CharacterID)
	}
	if ch.UserID != cc.UserID {
		return apperr.Forbidden("not your character")
	}
	cc.SetCharacter(ch)

	s.hub.EmitToMaster(cc.SessionID, EventCharacterUpdate, characterBody{
		User:      cc.UserInfo(),
		IsMaster:  cc.IsMaster,
		Character: ch,
	})
	return nil
}

// handleNoteUpdate resolves the note through the cache and rebroadcasts it.
// Authorization runs on every event, whichever layer the note came from:
// cache entries are not access-scoped.
func (s *WsServer) handleNoteUpdate(ctx context.Context, cc *ConnContext, req NoteUpdateRequest) error {
	n, err := s.noteSvc.CachedGet(ctx, req.NoteID)
	if err != nil {
		return err
	}
	if n.UserID != cc.UserID {
		return apperr.Forbidden("not your note")
	}
	if !n.Shared {
		return apperr.Forbidden("note is not shared")
	}

	s.hub.Emit(cc.SessionID, EventNoteUpdate, noteBody{
		User:     cc.UserInfo(),
		IsMaster: cc.IsMaster,
		Note:     n,
	}, cc)
	return nil
}

// handleSketchUpdate persists the master's sketch (write-through) and
// rebroadcasts it to everyone else.
func (s *WsServer) handleSketchUpdate(ctx context.Context, cc *ConnContext, req SketchUpdateRequest) error {
	if !cc.IsMaster {
		return apperr.Forbidden("only the game master edits the sketch")
	}
	if err := s.sessionSvc.UpdateSketch(ctx, cc.SessionID, req.Sketch); err != nil {
		return err
	}

	s.hub.Emit(cc.SessionID, EventSketchUpdate, sketchBody{
		User:     cc.UserInfo(),
		IsMaster: cc.IsMaster,
		Sketch:   req.Sketch,
	}, cc)
	return nil
}

func (s *WsServer) handleAudioPlay(ctx context.Context, cc *ConnContext, req AudioPlayRequest) error {
	if !cc.IsMaster {
		return apperr.Forbidden("only the game master plays audio")
	}
	a, err := s.assetSvc.Get(ctx, req.AssetID)
	if err != nil {
		return err
	}
	if a == nil {
		return apperr.NotFound("asset %d not found", req.AssetID)
	}
	if a.Kind != asset.KindAudio {
		return apperr.Forbidden("asset %d is not audio", a.ID)
	}

	s.hub.Emit(cc.SessionID, EventAudioPlay, audioBody{
		User:     cc.UserInfo(),
		IsMaster: cc.IsMaster,
		Asset:    a,
		Time:     req.Time,
	}, nil)
	return nil
}

func (s *WsServer) handleAudioStop(ctx context.Context, cc *ConnContext, _ struct{}) error {
	if !cc.IsMaster {
		return apperr.Forbidden("only the game master stops audio")
	}
	s.hub.Emit(cc.SessionID, EventAudioStop, audioBody{
		User:     cc.UserInfo(),
		IsMaster: cc.IsMaster,
	}, nil)
	return nil
}
