package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/model"
	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReferenceHandler struct {
	referenceService service.ReferenceService
}

func NewReferenceHandler(referenceService service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{referenceService: referenceService}
}

func (h *ReferenceHandler) RegisterRoutes(router *gin.RouterGroup) {
	reference := router.Group("/api/reference")
	{
		reference.GET("/:resource", h.ListReference)
		reference.DELETE("", h.InvalidateReference)
	}
}

// ListReference returns a cached reference list
// @Summary      List reference data
// @Description  accounts are scoped by personnel_type; responsibles and transports require project.
// @Tags         reference
// @Security     BearerAuth
// @Produce      json
// @Param        resource        path      string  true   "accounts, projects, responsibles, transports or areas"
// @Param        personnel_type  query     string  false  "nomina or transportista"
// @Param        project         query     string  false  "Project name"
// @Success      200             {object}  response.Response{data=[]model.Option}
// @Failure      422             {object}  response.Response
// @Router       /api/reference/{resource} [get]
func (h *ReferenceHandler) ListReference(c *gin.Context) {
	scope := map[string]string{}
	for _, key := range []string{service.ScopePersonnelType, service.ScopeProject} {
		if v := c.Query(key); v != "" {
			scope[key] = v
		}
	}

	opts, err := h.referenceService.List(c.Request.Context(), middleware.UserID(c), model.ReferenceResource(c.Param("resource")), scope)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, opts))
}

// InvalidateReference drops every cached list of the caller
// @Summary      Invalidate reference cache
// @Tags         reference
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/reference [delete]
func (h *ReferenceHandler) InvalidateReference(c *gin.Context) {
	if err := h.referenceService.Invalidate(c.Request.Context(), middleware.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Reference cache cleared"}))
}
