package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReposicionHandler struct {
	reposicionService service.ReposicionService
}

func NewReposicionHandler(reposicionService service.ReposicionService) *ReposicionHandler {
	return &ReposicionHandler{reposicionService: reposicionService}
}

func (h *ReposicionHandler) RegisterRoutes(router *gin.RouterGroup) {
	reposiciones := router.Group("/api/reposiciones")
	{
		reposiciones.POST("", middleware.RequirePermission("reposiciones.write"), h.CreateReposicion)
		reposiciones.GET("/:id", middleware.RequirePermission("reposiciones.read"), h.GetReposicion)
		reposiciones.POST("/:id/transition", middleware.RequirePermission("reposiciones.approve"), h.TransitionReposicion)
	}
}

// CreateReposicion batches pending requests of one project
// @Summary      Create reposición
// @Description  Uses request_ids when given, otherwise the current selection of the requests table. Exactly one attachment is required.
// @Tags         reposiciones
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        attachment     formData  file    true   "Supporting document"
// @Param        request_ids[]  formData  []string  false  "Request IDs"
// @Success      201            {object}  response.Response{data=service.ReposicionDetail}
// @Failure      422            {object}  response.Response
// @Failure      502            {object}  response.Response
// @Router       /api/reposiciones [post]
func (h *ReposicionHandler) CreateReposicion(c *gin.Context) {
	atts, err := formAttachments(c, "attachment")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	ids := c.PostFormArray("request_ids[]")
	if len(ids) == 0 {
		ids = c.PostFormArray("request_ids")
	}
	if len(ids) == 0 && c.ContentType() == gin.MIMEJSON {
		var body struct {
			RequestIDs []string `json:"request_ids"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		ids = body.RequestIDs
	}

	detail, err := h.reposicionService.Create(c.Request.Context(), middleware.UserID(c), service.CreateReposicionInput{
		RequestIDs:  ids,
		Attachments: atts,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, detail))
}

// GetReposicion returns a reposición with its member requests
// @Summary      Get reposición
// @Tags         reposiciones
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Reposición ID"
// @Success      200  {object}  response.Response{data=service.ReposicionDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/reposiciones/{id} [get]
func (h *ReposicionHandler) GetReposicion(c *gin.Context) {
	detail, err := h.reposicionService.Detail(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// TransitionReposicion schedules an undoable status change
// @Summary      Change reposición status
// @Description  The change is committed when the undo window elapses. Progress and the outcome are pushed over the websocket.
// @Tags         reposiciones
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Reposición ID"
// @Param        payload  body      service.TransitionReposicionInput  true  "Target status and payment data"
// @Success      202      {object}  response.Response{data=undo.Pending}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/reposiciones/{id}/transition [post]
func (h *ReposicionHandler) TransitionReposicion(c *gin.Context) {
	var in service.TransitionReposicionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	pending, err := h.reposicionService.ScheduleTransition(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, pending))
}
