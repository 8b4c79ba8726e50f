package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sigap-dashboard/sigap-api/internal/business/analytics"
	"github.com/sigap-dashboard/sigap-api/internal/business/clustering"
	"github.com/sigap-dashboard/sigap-api/internal/business/incident"
	"github.com/sigap-dashboard/sigap-api/internal/platform/auth"
	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/internal/platform/realtime"
	"github.com/sigap-dashboard/sigap-api/internal/repository"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

const (
	defaultCrimeLimit = 50
	maxCrimeLimit     = 500
	maxMonthPageSize  = 200
)

// AnalyticsService computes dashboard aggregates.
type AnalyticsService interface {
	Analytics(ctx context.Context, q model.CrimeQuery, category string) (model.AnalyticsResult, error)
	Stats(ctx context.Context, q model.CrimeQuery, category string) (model.CrimeStats, error)
	RefreshSnapshot(ctx context.Context) (model.DashboardSnapshot, error)
	Snapshot(ctx context.Context) (model.DashboardSnapshot, error)
}

// CrimeLister reads raw crime groups.
type CrimeLister interface {
	List(ctx context.Context, q model.CrimeQuery) ([]model.CrimeGroup, error)
	Get(ctx context.Context, id string) (model.CrimeGroup, error)
}

// IncidentService writes incidents.
type IncidentService interface {
	Create(ctx context.Context, districtID, districtName string, inc model.Incident) (model.CrimeGroup, model.Incident, error)
	Verify(ctx context.Context, groupID, incidentID, status string) (model.Incident, error)
}

// ClusterService manages district risk clusters.
type ClusterService interface {
	Live(ctx context.Context) ([]model.DistrictCluster, error)
	Refresh(ctx context.Context) ([]model.DistrictCluster, error)
	Migrate(ctx context.Context, period string) (model.MigrationRun, error)
	Runs(ctx context.Context, limit int) ([]model.MigrationRun, error)
	Run(ctx context.Context, runID string) (model.MigrationRun, error)
	CancelMigration(period string) bool
}

// Hub accepts websocket clients and broadcasts events to them.
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Broadcast(msgType string, data interface{})
}

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Analytics AnalyticsService
	Crimes    CrimeLister
	Incidents IncidentService // nil disables incident writes
	Clusters  ClusterService
	Hub       Hub
	Cursors   *analytics.CursorStore
	Metrics   http.Handler // nil disables /metrics
}

// Options configure cross-cutting router behaviour.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	AuthDisabled   bool
	Logger         logger.Logger
	Location       *time.Location
}

// Router wires HTTP handlers.
type Router struct {
	Deps
	log logger.Logger
	loc *time.Location
}

func NewRouter(deps Deps, opts Options) *gin.Engine {
	if deps.Cursors == nil {
		deps.Cursors = analytics.NewCursorStore()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	r := &Router{Deps: deps, log: opts.Logger, loc: opts.Location}

	router := gin.New()
	router.Use(requestLogger(opts.Logger), gin.Recovery(), corsMiddleware(opts.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	authn := auth.Middleware(opts.JWTSecret, opts.AuthDisabled)
	read := auth.RequirePermission(auth.PermAnalyticsRead)

	router.GET("/ws", authn, read, r.serveWS)

	api := router.Group("/api", authn)
	{
		api.GET("/analytics", read, r.getAnalytics)
		api.GET("/analytics/months/:month", read, r.getMonthPage)
		api.POST("/analytics/months/:month/:direction", read, r.advanceMonthPage)

		api.GET("/stats", read, r.getStats)
		api.GET("/stats/snapshot", read, r.getSnapshot)
		api.POST("/stats/refresh", auth.RequirePermission(auth.PermAnalyticsRefresh), r.refreshStats)

		api.GET("/crimes", auth.RequirePermission(auth.PermIncidentsRead), r.listCrimes)
		api.GET("/crimes/:group", auth.RequirePermission(auth.PermIncidentsRead), r.getCrime)
		api.POST("/crimes/:group/incidents/:incident/verify", auth.RequirePermission(auth.PermIncidentsVerify), r.verifyIncident)
		api.POST("/districts/:district/incidents", auth.RequirePermission(auth.PermIncidentsWrite), r.createIncident)

		admin := auth.RequirePermission(auth.PermClustersAdmin)
		api.GET("/clusters", read, r.listClusters)
		api.POST("/clusters/refresh", admin, r.refreshClusters)
		api.POST("/clusters/migrate", admin, r.migrateClusters)
		api.POST("/clusters/migrate/:period/cancel", admin, r.cancelMigration)
		api.GET("/clusters/runs", admin, r.listMigrationRuns)
		api.GET("/clusters/runs/:run", admin, r.getMigrationRun)
	}

	return router
}

func (r *Router) serveWS(c *gin.Context) {
	if r.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime updates are disabled"})
		return
	}
	r.Hub.ServeWS(c.Writer, c.Request)
}

func (r *Router) getAnalytics(c *gin.Context) {
	q, ok := parseCrimeQuery(c)
	if !ok {
		return
	}
	result, err := r.Analytics.Analytics(c.Request.Context(), q, c.Query("category"))
	if err != nil {
		r.writeError(c, err)
		return
	}
	r.Cursors.Sync(auth.Subject(c), result.AvailableMonths)
	c.JSON(http.StatusOK, result)
}

func (r *Router) getStats(c *gin.Context) {
	q, ok := parseCrimeQuery(c)
	if !ok {
		return
	}
	stats, err := r.Analytics.Stats(c.Request.Context(), q, c.Query("category"))
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (r *Router) getSnapshot(c *gin.Context) {
	snap, err := r.Analytics.Snapshot(c.Request.Context())
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) refreshStats(c *gin.Context) {
	snap, err := r.Analytics.RefreshSnapshot(c.Request.Context())
	if err != nil {
		r.writeError(c, err)
		return
	}
	r.broadcast(realtime.MessageStatsRefreshed, snap)
	c.JSON(http.StatusOK, snap)
}

func (r *Router) getMonthPage(c *gin.Context) {
	r.monthPage(c, nil)
}

func (r *Router) advanceMonthPage(c *gin.Context) {
	dir, err := analytics.ParseDirection(c.Param("direction"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.monthPage(c, &dir)
}

// monthPage serves one page of a month bucket, moving the caller's cursor first when dir is set.
// It takes the same district/year/month scope as /api/analytics so both sync the same months.
func (r *Router) monthPage(c *gin.Context, dir *analytics.Direction) {
	month := c.Param("month")
	if _, _, err := analytics.ParseMonthKey(month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, ok := parseCrimeQuery(c)
	if !ok {
		return
	}
	pageSize, err := queryInt(c, "pageSize", 0)
	if err != nil || pageSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pageSize"})
		return
	}
	if pageSize > maxMonthPageSize {
		pageSize = maxMonthPageSize
	}

	result, err := r.Analytics.Analytics(c.Request.Context(), q, c.Query("category"))
	if err != nil {
		r.writeError(c, err)
		return
	}

	session := auth.Subject(c)
	r.Cursors.Sync(session, result.AvailableMonths)
	page := r.Cursors.Page(session, month)
	if dir != nil {
		page = r.Cursors.Advance(session, month, *dir)
	}
	c.JSON(http.StatusOK, analytics.PageIncidents(result, month, page, pageSize))
}

func (r *Router) listCrimes(c *gin.Context) {
	q, ok := parseCrimeQuery(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", defaultCrimeLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	if limit > maxCrimeLimit {
		limit = maxCrimeLimit
	}
	q.Limit = limit

	groups, err := r.Crimes.List(c.Request.Context(), q)
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": groups, "count": len(groups)})
}

func (r *Router) getCrime(c *gin.Context) {
	group, err := r.Crimes.Get(c.Request.Context(), c.Param("group"))
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

type createIncidentReq struct {
	DistrictName string  `json:"districtName" binding:"max=128"`
	Timestamp    string  `json:"timestamp"`
	Description  string  `json:"description" binding:"required,max=4000"`
	Status       string  `json:"status" binding:"max=64"`
	Category     string  `json:"category" binding:"required,max=128"`
	Address      string  `json:"address" binding:"max=512"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

func (r *Router) createIncident(c *gin.Context) {
	if !r.incidentWritesEnabled(c) {
		return
	}
	var req createIncidentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	inc := model.Incident{
		Description: req.Description,
		Status:      req.Status,
		Category:    req.Category,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if req.Timestamp != "" {
		inc.Timestamp = model.ParseTimestamp(req.Timestamp)
		if inc.Timestamp == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp"})
			return
		}
	}

	group, created, err := r.Incidents.Create(c.Request.Context(), c.Param("district"), req.DistrictName, inc)
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"groupId": group.ID, "incident": created})
}

type verifyIncidentReq struct {
	Status string `json:"status" binding:"required"`
}

func (r *Router) verifyIncident(c *gin.Context) {
	if !r.incidentWritesEnabled(c) {
		return
	}
	var req verifyIncidentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	updated, err := r.Incidents.Verify(c.Request.Context(), c.Param("group"), c.Param("incident"), req.Status)
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (r *Router) incidentWritesEnabled(c *gin.Context) bool {
	if r.Incidents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "incident writes are disabled for this crime source"})
		return false
	}
	return true
}

func (r *Router) listClusters(c *gin.Context) {
	clusters, err := r.Clusters.Live(c.Request.Context())
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": clusters})
}

func (r *Router) refreshClusters(c *gin.Context) {
	clusters, err := r.Clusters.Refresh(c.Request.Context())
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": clusters})
}

type migrateReq struct {
	Period string `json:"period"`
}

func (r *Router) migrateClusters(c *gin.Context) {
	var req migrateReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}
	if req.Period == "" {
		req.Period = clustering.PreviousPeriod(time.Now().In(r.loc))
	}
	if _, _, err := analytics.ParseMonthKey(req.Period); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := r.Clusters.Migrate(c.Request.Context(), req.Period)
	if err != nil && run.RunID == "" {
		r.writeError(c, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	c.JSON(status, run)
}

func (r *Router) cancelMigration(c *gin.Context) {
	period := c.Param("period")
	if !r.Clusters.CancelMigration(period) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no migration running for " + period})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"period": period, "status": clustering.StatusCancelled})
}

func (r *Router) getMigrationRun(c *gin.Context) {
	run, err := r.Clusters.Run(c.Request.Context(), c.Param("run"))
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (r *Router) listMigrationRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	runs, err := r.Clusters.Runs(c.Request.Context(), limit)
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

func (r *Router) broadcast(msgType string, data interface{}) {
	if r.Hub != nil {
		r.Hub.Broadcast(msgType, data)
	}
}

// writeError maps service errors to status codes.
func (r *Router) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, incident.ErrInvalidStatus), errors.Is(err, incident.ErrInvalidIncident):
		status = http.StatusBadRequest
	case errors.Is(err, clustering.ErrMigrationRunning):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		r.log.Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseCrimeQuery(c *gin.Context) (model.CrimeQuery, bool) {
	year, err := queryInt(c, "year", 0)
	if err != nil || year < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return model.CrimeQuery{}, false
	}
	month, err := queryInt(c, "month", 0)
	if err != nil || month < 0 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return model.CrimeQuery{}, false
	}
	return model.CrimeQuery{
		DistrictID: c.Query("district"),
		Year:       year,
		Month:      month,
	}, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
