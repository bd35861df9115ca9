package handler

import (
	"errors"
	"net/http"
	"time"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type JournalHandler struct {
	journalService service.JournalService
}

func NewJournalHandler(journalService service.JournalService) *JournalHandler {
	return &JournalHandler{journalService: journalService}
}

func (h *JournalHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/journal")
	{
		group.GET("", h.GetJournal)
		group.GET("/summary", middleware.RequireRole("admin", "manager"), h.GetSummary)
	}
}

// GetJournal lists journaled actions, newest first. Admins and managers see
// every user; everyone else sees their own entries.
// @Summary      Get action journal
// @Description  Outcomes of edits, transitions, imports and undoable actions, including cascaded member updates
// @Tags         journal
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Param        user_id      query     string  false  "Filter by user (admins and managers only)"
// @Param        entity_type  query     string  false  "request or reposicion"
// @Param        entity_id    query     string  false  "Entity ID"
// @Param        outcome      query     string  false  "committed, undone, superseded or failed"
// @Success      200          {object}  response.Response{data=response.Paged}
// @Router       /api/journal [get]
func (h *JournalHandler) GetJournal(c *gin.Context) {
	p := pagination.Parse(c)
	q := service.JournalQuery{
		UserID:     c.Query("user_id"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Outcome:    c.Query("outcome"),
		Page:       p.Page,
		Limit:      p.Limit,
	}
	switch c.GetString(middleware.UserRoleKey) {
	case "admin", "manager":
	default:
		q.UserID = middleware.UserID(c)
	}

	logs, total, err := h.journalService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Paged{
		Items: logs,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	}))
}

// GetSummary counts journaled actions per action and outcome. Admins and
// managers only.
// @Summary      Get journal summary
// @Description  Number of journaled actions grouped by action and outcome, optionally since a date
// @Tags         journal
// @Security     BearerAuth
// @Produce      json
// @Param        since        query     string  false  "Count entries from this date (YYYY-MM-DD)"
// @Param        user_id      query     string  false  "Filter by user"
// @Param        entity_type  query     string  false  "request or reposicion"
// @Success      200          {object}  response.Response{data=[]repository.JournalSummaryRow}
// @Failure      400          {object}  response.Response
// @Failure      403          {object}  response.Response
// @Router       /api/journal/summary [get]
func (h *JournalHandler) GetSummary(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(c, errors.New("since must be YYYY-MM-DD"))
			return
		}
		since = t
	}
	q := service.JournalQuery{
		UserID:     c.Query("user_id"),
		EntityType: c.Query("entity_type"),
	}

	rows, err := h.journalService.Summary(c.Request.Context(), q, since)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}
