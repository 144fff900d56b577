package notehandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/services/note"
)

// Handler is the REST side of the note protocol. It shares the cache
// write-through/invalidate path with the realtime channel through the note
// service, so concurrent REST and websocket edits converge on last write
// wins at both layers.
type Handler struct {
	noteSvc *note.Service
}

func New(noteSvc *note.Service) *Handler { return &Handler{noteSvc: noteSvc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/sessions/:id/notes", h.list)
	r.POST("/notes", h.create)
	r.PATCH("/notes/:id", h.update)
	r.DELETE("/notes/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}
	list, err := h.noteSvc.ListForSession(c, sessionID, auth.IdentityFrom(c).UserID)
	if err != nil {
		zap.L().Error("note_list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) create(c *gin.Context) {
	var body CreateNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	n := &note.Note{
		UserID:    auth.IdentityFrom(c).UserID,
		SessionID: body.SessionID,
		Title:     body.Title,
		Text:      body.Text,
		Shared:    body.Shared,
	}
	n, err := h.noteSvc.Create(c, n)
	if err != nil {
		zap.L().Error("note_create", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) update(c *gin.Context) {
	n, ok := h.ownedNote(c)
	if !ok {
		return
	}
	var body UpdateNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if body.Title != nil {
		n.Title = *body.Title
	}
	if body.Text != nil {
		n.Text = *body.Text
	}
	if body.Shared != nil {
		n.Shared = *body.Shared
	}
	if err := h.noteSvc.Update(c, n); err != nil {
		zap.L().Error("note_update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) delete(c *gin.Context) {
	n, ok := h.ownedNote(c)
	if !ok {
		return
	}
	if err := h.noteSvc.Delete(c, n.ID); err != nil {
		zap.L().Error("note_delete", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedNote loads the note referenced by :id and enforces ownership. It
// writes the error response itself when it returns false.
func (h *Handler) ownedNote(c *gin.Context) (*note.Note, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid note id"})
		return nil, false
	}
	n, err := h.noteSvc.Get(c, id)
	if err != nil {
		zap.L().Error("note_lookup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return nil, false
	}
	if n == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "note not found"})
		return nil, false
	}
	if n.UserID != auth.IdentityFrom(c).UserID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not your note"})
		return nil, false
	}
	return n, true
}
