package handler

import (
	"net/http"

	"backoffice/internal/gateway"
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type FormHandler struct {
	formService service.FormService
}

func NewFormHandler(formService service.FormService) *FormHandler {
	return &FormHandler{formService: formService}
}

func (h *FormHandler) RegisterRoutes(router *gin.RouterGroup) {
	forms := router.Group("/api/forms")
	forms.Use(middleware.RequirePermission("requests.write"))
	{
		forms.GET("/request", h.GetRequestForm)
		forms.PATCH("/request", h.SetRequestField)
		forms.PUT("/request/attachment", h.SetRequestAttachment)
		forms.DELETE("/request/attachment", h.ClearRequestAttachment)
		forms.POST("/request/submit", h.SubmitRequest)
		forms.DELETE("/request", h.ResetRequest)

		forms.GET("/mass", h.GetMassForm)
		forms.PATCH("/mass", h.SetMassField)
		forms.PUT("/mass/employees", h.SetMassEmployees)
		forms.PUT("/mass/attachment", h.SetMassAttachment)
		forms.DELETE("/mass/attachment", h.ClearMassAttachment)
		forms.POST("/mass/submit", h.SubmitMass)
		forms.DELETE("/mass", h.ResetMass)
	}
}

// uploadedAttachment reads the single "attachment" file of a multipart
// request and writes the error response itself.
func uploadedAttachment(c *gin.Context) (*gateway.Attachment, bool) {
	fh, err := c.FormFile("attachment")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "attachment file is required"))
		return nil, false
	}
	att, err := readAttachment(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return nil, false
	}
	return &att, true
}

// GetRequestForm returns the draft of the single request form
// @Summary      Get request form
// @Description  Returns values, reference options, loading flags and field violations of the draft.
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=composer.Snapshot}
// @Router       /api/forms/request [get]
func (h *FormHandler) GetRequestForm(c *gin.Context) {
	snap := h.formService.Request(c.Request.Context(), middleware.UserID(c))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SetRequestField sets one field of the request form
// @Summary      Set request form field
// @Description  Changing type, personnel type or project clears and reloads the dependent fields.
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SetFieldInput  true  "Field and value"
// @Success      200      {object}  response.Response{data=composer.Snapshot}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/request [patch]
func (h *FormHandler) SetRequestField(c *gin.Context) {
	var in service.SetFieldInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	snap, err := h.formService.SetRequestField(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SetRequestAttachment attaches the supporting document
// @Summary      Attach file to request form
// @Tags         forms
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        attachment  formData  file  true  "Supporting document"
// @Success      200         {object}  response.Response{data=composer.Snapshot}
// @Failure      400         {object}  response.Response
// @Router       /api/forms/request/attachment [put]
func (h *FormHandler) SetRequestAttachment(c *gin.Context) {
	att, ok := uploadedAttachment(c)
	if !ok {
		return
	}
	snap := h.formService.SetRequestAttachment(c.Request.Context(), middleware.UserID(c), att)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// ClearRequestAttachment removes the attached document
// @Summary      Remove request form attachment
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=composer.Snapshot}
// @Router       /api/forms/request/attachment [delete]
func (h *FormHandler) ClearRequestAttachment(c *gin.Context) {
	snap := h.formService.SetRequestAttachment(c.Request.Context(), middleware.UserID(c), nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SubmitRequest validates the draft and creates the request
// @Summary      Submit request form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  response.Response{data=model.Request}
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/forms/request/submit [post]
func (h *FormHandler) SubmitRequest(c *gin.Context) {
	req, err := h.formService.SubmitRequest(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, req))
}

// ResetRequest discards the draft
// @Summary      Reset request form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=composer.Snapshot}
// @Router       /api/forms/request [delete]
func (h *FormHandler) ResetRequest(c *gin.Context) {
	snap := h.formService.ResetRequest(c.Request.Context(), middleware.UserID(c))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// GetMassForm returns the draft of the mass request form
// @Summary      Get mass form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=composer.MassSnapshot}
// @Router       /api/forms/mass [get]
func (h *FormHandler) GetMassForm(c *gin.Context) {
	snap := h.formService.Mass(c.Request.Context(), middleware.UserID(c))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SetMassField sets one field of the mass form
// @Summary      Set mass form field
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SetFieldInput  true  "Field and value"
// @Success      200      {object}  response.Response{data=composer.MassSnapshot}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/mass [patch]
func (h *FormHandler) SetMassField(c *gin.Context) {
	var in service.SetFieldInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	snap, err := h.formService.SetMassField(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SetMassEmployees changes the employee selection of the mass form
// @Summary      Select mass form employees
// @Description  Replace the selection with ids, toggle a single employee, or select all or none.
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.EmployeesInput  true  "Employee selection"
// @Success      200      {object}  response.Response{data=composer.MassSnapshot}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/mass/employees [put]
func (h *FormHandler) SetMassEmployees(c *gin.Context) {
	var in service.EmployeesInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	snap, err := h.formService.SetMassEmployees(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SetMassAttachment attaches the supporting document of the batch
// @Summary      Attach file to mass form
// @Tags         forms
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        attachment  formData  file  true  "Supporting document"
// @Success      200         {object}  response.Response{data=composer.MassSnapshot}
// @Router       /api/forms/mass/attachment [put]
func (h *FormHandler) SetMassAttachment(c *gin.Context) {
	att, ok := uploadedAttachment(c)
	if !ok {
		return
	}
	snap := h.formService.SetMassAttachment(c.Request.Context(), middleware.UserID(c), att)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// ClearMassAttachment removes the attached document
// @Summary      Remove mass form attachment
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=composer.MassSnapshot}
// @Router       /api/forms/mass/attachment [delete]
func (h *FormHandler) ClearMassAttachment(c *gin.Context) {
	snap := h.formService.SetMassAttachment(c.Request.Context(), middleware.UserID(c), nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}

// SubmitMass creates one request per selected employee
// @Summary      Submit mass form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  response.Response{data=service.MassSubmitResponse}
// @Failure      422  {object}  response.Response
// @Router       /api/forms/mass/submit [post]
func (h *FormHandler) SubmitMass(c *gin.Context) {
	res, err := h.formService.SubmitMass(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ResetMass discards the mass draft
// @Summary      Reset mass form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=composer.MassSnapshot}
// @Router       /api/forms/mass [delete]
func (h *FormHandler) ResetMass(c *gin.Context) {
	snap := h.formService.ResetMass(c.Request.Context(), middleware.UserID(c))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snap))
}
