package sessionhandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cthunline/cthunline-api-sub001/internal/auth"
	"github.com/cthunline/cthunline-api-sub001/internal/services/session"
	"github.com/cthunline/cthunline-api-sub001/internal/services/statistics"
)

type Handler struct {
	sessionSvc *session.Service
	statsSvc   *statistics.Service
}

func New(sessionSvc *session.Service, statsSvc *statistics.Service) *Handler {
	return &Handler{sessionSvc: sessionSvc, statsSvc: statsSvc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/sessions", h.list)
	r.POST("/sessions", h.create)
	r.GET("/sessions/:id", h.info)
	r.DELETE("/sessions/:id", h.delete)
	r.GET("/statistics", h.statistics)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.sessionSvc.List(c)
	if err != nil {
		zap.L().Error("session_list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// create opens a new table with the caller as its game master.
func (h *Handler) create(c *gin.Context) {
	var body CreateSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	identity := auth.IdentityFrom(c)

	s, err := h.sessionSvc.Create(c, body.GameID, body.Name, identity.UserID)
	if err != nil {
		zap.L().Error("session_create", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) info(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}
	s, err := h.sessionSvc.Get(c, id)
	if err != nil {
		zap.L().Error("session_info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// delete removes a session; only its game master may do so.
func (h *Handler) delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}
	s, err := h.sessionSvc.Get(c, id)
	if err != nil {
		zap.L().Error("session_delete", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}
	if s.MasterID != auth.IdentityFrom(c).UserID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the game master may delete a session"})
		return
	}
	if err := h.sessionSvc.Delete(c, id); err != nil {
		zap.L().Error("session_delete", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.statsSvc.ComputeStats(c, auth.IdentityFrom(c).UserID)
	if err != nil {
		zap.L().Error("statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
