package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/internal/session"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type TableHandler struct {
	tableService service.TableService
}

func NewTableHandler(tableService service.TableService) *TableHandler {
	return &TableHandler{tableService: tableService}
}

func (h *TableHandler) RegisterRoutes(router *gin.RouterGroup) {
	tables := router.Group("/api/tables/:kind")
	tables.Use(requireTablePermission())
	{
		tables.GET("", h.GetTable)
		tables.PATCH("/query", h.SetQuery)
		tables.POST("/selection", h.Select)
		tables.POST("/refresh", h.Refresh)
		tables.GET("/export", h.Export)
	}
}

// requireTablePermission checks "<kind>.read" for the table in the path.
func requireTablePermission() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := session.ParseTableKind(c.Param("kind"))
		if err != nil {
			fail(c, err)
			c.Abort()
			return
		}
		middleware.RequirePermission(string(kind) + ".read")(c)
	}
}

func tableKind(c *gin.Context) session.TableKind {
	kind, _ := session.ParseTableKind(c.Param("kind"))
	return kind
}

// queryFromParams builds a TableQuery from the URL. Parameters that are
// absent leave the state unchanged.
func queryFromParams(c *gin.Context) (service.TableQuery, bool) {
	var q service.TableQuery
	set := false
	str := func(name string) *string {
		if v, ok := c.GetQuery(name); ok {
			set = true
			return &v
		}
		return nil
	}
	q.Search = str("search")
	q.SortBy = str("sort_by")
	if v := str("sort_order"); v != nil {
		q.SortOrder = *v
	}
	q.Status = str("status")
	q.Type = str("type")
	q.Period = str("period")
	if v, ok := c.GetQuery("page"); ok {
		p := pagination.ParseValues(v, "", pagination.DefaultLimit)
		q.Page = &p.Page
		set = true
	}
	if v, ok := c.GetQuery("per_page"); ok {
		p := pagination.ParseValues("", v, pagination.DefaultLimit)
		q.PerPage = &p.Limit
		set = true
	}
	return q, set
}

// GetTable renders the current page of a table, loading it on first use
// @Summary      Get table view
// @Description  Returns the current page. Query parameters, when given, update search, sort, filter and pagination first.
// @Tags         tables
// @Security     BearerAuth
// @Produce      json
// @Param        kind        path      string  true   "requests, reposiciones or users"
// @Param        search      query     string  false  "Search text"
// @Param        sort_by     query     string  false  "Column key"
// @Param        sort_order  query     string  false  "asc or desc"
// @Param        page        query     int     false  "Page number (1-based)"
// @Param        per_page    query     int     false  "Rows per page"
// @Param        status      query     string  false  "Request status filter"
// @Param        type        query     string  false  "Request type filter"
// @Param        period      query     string  false  "Request period filter (YYYY-MM)"
// @Success      200         {object}  response.Response{data=service.TableView}
// @Failure      404         {object}  response.Response
// @Failure      422         {object}  response.Response
// @Router       /api/tables/{kind} [get]
func (h *TableHandler) GetTable(c *gin.Context) {
	userID := middleware.UserID(c)
	var (
		view service.TableView
		err  error
	)
	if q, ok := queryFromParams(c); ok {
		view, err = h.tableService.Query(c.Request.Context(), userID, tableKind(c), q)
	} else {
		view, err = h.tableService.View(c.Request.Context(), userID, tableKind(c))
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// SetQuery updates the query state of a table
// @Summary      Update table query
// @Description  Changes search, sort, filter or pagination. A search on the requests table is debounced and answered over the websocket.
// @Tags         tables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        kind     path      string              true  "Table kind"
// @Param        payload  body      service.TableQuery  true  "Query changes"
// @Success      200      {object}  response.Response{data=service.TableView}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/tables/{kind}/query [patch]
func (h *TableHandler) SetQuery(c *gin.Context) {
	var q service.TableQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.tableService.Query(c.Request.Context(), middleware.UserID(c), tableKind(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// Select changes the row selection
// @Summary      Change selection
// @Tags         tables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        kind     path      string                  true  "Table kind"
// @Param        payload  body      service.SelectionInput  true  "Selection mode and row"
// @Success      200      {object}  response.Response{data=service.TableView}
// @Failure      404      {object}  response.Response
// @Router       /api/tables/{kind}/selection [post]
func (h *TableHandler) Select(c *gin.Context) {
	var in service.SelectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.tableService.Select(c.Request.Context(), middleware.UserID(c), tableKind(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// Refresh reloads a table from the backend
// @Summary      Refresh table
// @Tags         tables
// @Security     BearerAuth
// @Produce      json
// @Param        kind  path      string  true  "Table kind"
// @Success      200   {object}  response.Response{data=service.TableView}
// @Failure      502   {object}  response.Response
// @Router       /api/tables/{kind}/refresh [post]
func (h *TableHandler) Refresh(c *gin.Context) {
	view, err := h.tableService.Refresh(c.Request.Context(), middleware.UserID(c), tableKind(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// Export downloads every filtered row as a spreadsheet
// @Summary      Export table
// @Tags         tables
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        kind  path  string  true  "Table kind"
// @Success      200   {file}  file
// @Router       /api/tables/{kind}/export [get]
func (h *TableHandler) Export(c *gin.Context) {
	f, filename, err := h.tableService.Export(c.Request.Context(), middleware.UserID(c), tableKind(c))
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("file", filename).Msg("failed to stream export")
	}
}
