package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActionHandler struct {
	actionService service.ActionService
}

func NewActionHandler(actionService service.ActionService) *ActionHandler {
	return &ActionHandler{actionService: actionService}
}

func (h *ActionHandler) RegisterRoutes(router *gin.RouterGroup) {
	actions := router.Group("/api/actions")
	{
		actions.GET("", h.ListPending)
		actions.POST("/:id/undo", h.Undo)
	}
}

// ListPending returns the caller's actions still inside their undo window
// @Summary      List pending actions
// @Tags         actions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]undo.Pending}
// @Router       /api/actions [get]
func (h *ActionHandler) ListPending(c *gin.Context) {
	pending := h.actionService.Pending(c.Request.Context(), middleware.UserID(c))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pending))
}

// Undo cancels a pending action before it is committed
// @Summary      Undo action
// @Tags         actions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Action ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/actions/{id}/undo [post]
func (h *ActionHandler) Undo(c *gin.Context) {
	if err := h.actionService.Undo(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Action undone"}))
}
