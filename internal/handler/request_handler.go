package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/model"
	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.GET("/:id", middleware.RequirePermission("requests.read"), h.GetRequest)
		requests.PATCH("/:id", middleware.RequirePermission("requests.write"), h.EditRequest)
		requests.POST("/:id/transition", middleware.RequirePermission("requests.approve"), h.TransitionRequest)
		requests.POST("/import", middleware.RequirePermission("requests.write"), h.ImportRequests)
	}
}

// GetRequest returns one request with the actions allowed on it
// @Summary      Get request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	detail, err := h.requestService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// EditRequest updates the editable fields of a request
// @Summary      Edit request
// @Description  Paid, rejected and in_reposition requests are locked. Status cannot be changed here.
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Request ID"
// @Param        payload  body      model.RequestPatch  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.RequestDetail}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/requests/{id} [patch]
func (h *RequestHandler) EditRequest(c *gin.Context) {
	var patch model.RequestPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	detail, err := h.requestService.Edit(c.Request.Context(), middleware.UserID(c), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// TransitionRequest moves a request to another status
// @Summary      Change request status
// @Description  Only direct transitions are accepted. in_reposition is managed by reposiciones.
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Request ID"
// @Param        payload  body      service.TransitionRequestInput  true  "Target status"
// @Success      200      {object}  response.Response{data=service.RequestDetail}
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/transition [post]
func (h *RequestHandler) TransitionRequest(c *gin.Context) {
	var in service.TransitionRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	detail, err := h.requestService.Transition(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// ImportRequests creates requests from an .xlsx or .csv spreadsheet
// @Summary      Import requests
// @Description  Every row is validated before anything is sent. One invalid cell rejects the whole file.
// @Tags         requests
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Spreadsheet"
// @Success      201   {object}  response.Response{data=service.ImportResponse}
// @Failure      400   {object}  response.Response
// @Failure      422   {object}  response.Response
// @Router       /api/requests/import [post]
func (h *RequestHandler) ImportRequests(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "file is required"))
		return
	}
	defer file.Close()
	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, errFileTooLarge.Error()))
		return
	}

	res, err := h.requestService.Import(c.Request.Context(), middleware.UserID(c), header.Filename, file)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}
