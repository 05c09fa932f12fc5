package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vesseleye/internal/alert"
	"github.com/vesseleye/internal/auth"
	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/geofence"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/monitor"
	"github.com/vesseleye/internal/report"
	"github.com/vesseleye/internal/tracking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CacheClearer drops cached vessel identities.
type CacheClearer interface {
	ClearCache(ctx context.Context)
}

// VesselDirectory lists vessels known to the tracking API.
type VesselDirectory interface {
	ListVessels(ctx context.Context, page, limit int, search string) ([]tracking.Vessel, error)
}

// FleetLocator answers proximity queries over live vessel positions.
type FleetLocator interface {
	VesselsNear(ctx context.Context, lat, lon, radiusMeters float64) ([]string, error)
}

// Deps are the components the REST surface exposes. Cache, Directory,
// Locator and Mailer are optional.
type Deps struct {
	DB        *gorm.DB
	Fetcher   *monitor.Fetcher
	Alerts    *alert.AlertManager
	Rules     *alert.RuleManager
	Geofences *geofence.Evaluator
	Reports   *report.Generator
	Mailer    *report.Mailer
	Auth      *auth.Authenticator
	Cache     CacheClearer
	Directory VesselDirectory
	PageLimit int
	Locator   FleetLocator
	Clock     clock.Clock
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	router *gin.Engine
	http   *http.Server
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.PageLimit <= 0 {
		deps.PageLimit = 100
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		deps:   deps,
		logger: logger,
		router: router,
	}
	s.setupRoutes()
	return s
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST("/api/v1/auth/login", s.login)

	api := s.router.Group("/api/v1")
	api.Use(s.deps.Auth.Middleware())

	fetcher := api.Group("/fetcher")
	{
		fetcher.GET("/status", auth.RequirePermission(models.ActionViewFleet), s.fetcherStatus)
		fetcher.POST("/trigger", auth.RequirePermission(models.ActionControlFetcher), s.triggerFetch)
		fetcher.POST("/start", auth.RequirePermission(models.ActionControlFetcher), s.startFetcher)
		fetcher.POST("/stop", auth.RequirePermission(models.ActionControlFetcher), s.stopFetcher)
		fetcher.DELETE("/cache", auth.RequirePermission(models.ActionControlFetcher), s.clearCache)
	}

	api.GET("/tracking/vessels", auth.RequirePermission(models.ActionViewFleet), s.trackingVessels)

	vessels := api.Group("/vessels", auth.RequirePermission(models.ActionViewFleet))
	{
		vessels.GET("", s.listVessels)
		vessels.GET("/near", s.vesselsNear)
		vessels.GET("/:id", s.getVessel)
		vessels.GET("/:id/telemetry", s.listTelemetry)
		vessels.GET("/:id/telemetry/latest", s.latestTelemetry)
		vessels.GET("/:id/geofences", s.listGeofences)
		vessels.POST("/:id/geofences/evaluate", s.evaluateGeofences)
	}

	alerts := api.Group("/alerts")
	{
		alerts.GET("", auth.RequirePermission(models.ActionViewAlerts), s.listAlerts)
		alerts.GET("/active", auth.RequirePermission(models.ActionViewAlerts), s.activeAlerts)
		alerts.GET("/stats", auth.RequirePermission(models.ActionViewAlerts), s.alertStats)
		alerts.GET("/:id", auth.RequirePermission(models.ActionViewAlerts), s.getAlert)
		alerts.PUT("/:id/acknowledge", auth.RequirePermission(models.ActionHandleAlerts), s.acknowledgeAlert)
		alerts.PUT("/:id/resolve", auth.RequirePermission(models.ActionHandleAlerts), s.resolveAlert)
	}

	rules := api.Group("/rules")
	{
		rules.GET("", auth.RequirePermission(models.ActionViewAlerts), s.listRules)
		rules.GET("/:id", auth.RequirePermission(models.ActionViewAlerts), s.getRule)
		rules.GET("/:id/evaluations", auth.RequirePermission(models.ActionViewAlerts), s.listEvaluations)
		rules.PUT("/:id/mute", auth.RequirePermission(models.ActionHandleAlerts), s.muteRule)
		rules.PUT("/:id/unmute", auth.RequirePermission(models.ActionHandleAlerts), s.unmuteRule)
		rules.POST("/evaluate-pending", auth.RequirePermission(models.ActionEvaluateRules), s.evaluatePending)
	}

	reports := api.Group("/reports", auth.RequirePermission(models.ActionViewAlerts))
	{
		reports.GET("/alerts", s.alertReport)
		reports.POST("/alerts/send", s.sendAlertReport)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("api server listening", zap.Int("port", port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.deps.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "fetcher_running": s.deps.Fetcher.Status().Running})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := s.deps.Auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case errors.Is(err, auth.ErrInactiveUser):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (s *Server) fetcherStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Fetcher.Status())
}

func (s *Server) triggerFetch(c *gin.Context) {
	// The cycle outlives a dropped client connection.
	result, err := s.deps.Fetcher.Trigger(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) startFetcher(c *gin.Context) {
	started := s.deps.Fetcher.Start()
	c.JSON(http.StatusOK, gin.H{"changed": started, "status": s.deps.Fetcher.Status()})
}

func (s *Server) stopFetcher(c *gin.Context) {
	stopped := s.deps.Fetcher.Stop()
	c.JSON(http.StatusOK, gin.H{"changed": stopped, "status": s.deps.Fetcher.Status()})
}

func (s *Server) clearCache(c *gin.Context) {
	if s.deps.Cache == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "identity cache is not available"})
		return
	}
	s.deps.Cache.ClearCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "identity cache cleared"})
}

func (s *Server) listVessels(c *gin.Context) {
	query := s.deps.DB.WithContext(c.Request.Context())
	if atSea := c.Query("at_sea"); atSea != "" {
		query = query.Where("at_sea = ?", atSea == "true")
	}
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR imei LIKE ?", like, like)
	}

	var vessels []models.Vessel
	if err := query.Order("name").Find(&vessels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list vessels"})
		return
	}
	c.JSON(http.StatusOK, vessels)
}

func (s *Server) trackingVessels(c *gin.Context) {
	if s.deps.Directory == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "tracking API is not configured"})
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	limit := s.deps.PageLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l < limit {
		limit = l
	}

	vessels, err := s.deps.Directory.ListVessels(c.Request.Context(), page, limit, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "limit": limit, "vessels": vessels})
}

func (s *Server) getVessel(c *gin.Context) {
	vessel, ok := s.vessel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, vessel)
}

func (s *Server) vesselsNear(c *gin.Context) {
	if s.deps.Locator == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "live fleet positions require redis"})
		return
	}
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	radius, errRadius := strconv.ParseFloat(c.DefaultQuery("radius", "10000"), 64)
	if errLat != nil || errLon != nil || errRadius != nil || radius <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat, lon and a positive radius are required"})
		return
	}

	ids, err := s.deps.Locator.VesselsNear(c.Request.Context(), lat, lon, radius)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vessel_ids": ids})
}

func (s *Server) listTelemetry(c *gin.Context) {
	vessel, ok := s.vessel(c)
	if !ok {
		return
	}
	query := s.deps.DB.WithContext(c.Request.Context()).Where("vessel_id = ?", vessel.ID)

	if start := c.Query("start"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			query = query.Where("timestamp >= ?", t.UTC())
		}
	}
	if end := c.Query("end"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			query = query.Where("timestamp <= ?", t.UTC())
		}
	}
	limit := 100
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	var reports []models.TelemetryReport
	if err := query.Order("timestamp desc").Limit(limit).Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch telemetry"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) latestTelemetry(c *gin.Context) {
	vessel, ok := s.vessel(c)
	if !ok {
		return
	}
	var r models.TelemetryReport
	err := s.deps.DB.WithContext(c.Request.Context()).
		Where("vessel_id = ?", vessel.ID).Order("timestamp desc").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no telemetry for vessel"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch telemetry"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listGeofences(c *gin.Context) {
	vessel, ok := s.vessel(c)
	if !ok {
		return
	}
	fences, err := s.deps.Geofences.Geofences(c.Request.Context(), vessel.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fences)
}

// evaluateGeofences checks a position against the vessel's geofences. The
// body may carry a position; otherwise the vessel's last known one is used.
func (s *Server) evaluateGeofences(c *gin.Context) {
	vessel, ok := s.vessel(c)
	if !ok {
		return
	}

	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var pos models.Position
	if req.Latitude != nil && req.Longitude != nil {
		pos = models.Position{Latitude: *req.Latitude, Longitude: *req.Longitude}
	} else if latest, ok := vessel.LatestPosition(); ok {
		pos = latest
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vessel has no known position"})
		return
	}

	violations, err := s.deps.Geofences.Evaluate(c.Request.Context(), vessel.ID, pos)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos, "violations": violations})
}

func (s *Server) listAlerts(c *gin.Context) {
	filter := alert.AlertFilter{
		VesselID: queryUint(c, "vessel_id"),
		RuleID:   queryUint(c, "rule_id"),
		Status:   models.AlertStatus(c.Query("status")),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = &t
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		filter.Limit = l
	}

	alerts, err := s.deps.Alerts.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) activeAlerts(c *gin.Context) {
	alerts, err := s.deps.Alerts.ActiveAlerts(c.Request.Context(), queryUint(c, "vessel_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) alertStats(c *gin.Context) {
	stats, err := s.deps.Alerts.Stats(c.Request.Context(), queryUint(c, "vessel_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getAlert(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := s.deps.Alerts.GetAlert(c.Request.Context(), id)
	if err != nil {
		s.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := s.deps.Alerts.AcknowledgeAlert(c.Request.Context(), id, auth.CurrentPrincipal(c).Username)
	if err != nil {
		s.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) resolveAlert(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := s.deps.Alerts.ResolveAlert(c.Request.Context(), id, auth.CurrentPrincipal(c).Username)
	if err != nil {
		s.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) alertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alert.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, alert.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) listRules(c *gin.Context) {
	filter := alert.RuleFilter{
		VesselID: queryUint(c, "vessel_id"),
		Enabled:  queryBool(c, "enabled"),
		Muted:    queryBool(c, "muted"),
	}
	rules, err := s.deps.Rules.ListRules(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rule, err := s.deps.Rules.GetRule(c.Request.Context(), id)
	if err != nil {
		s.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) listEvaluations(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	evals, err := s.deps.Rules.ListEvaluations(c.Request.Context(), id, limit)
	if err != nil {
		s.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, evals)
}

func (s *Server) muteRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Minutes int        `json:"minutes"`
		Until   *time.Time `json:"until"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	until := req.Until
	if until == nil && req.Minutes > 0 {
		t := s.deps.Clock.Now().Add(time.Duration(req.Minutes) * time.Minute)
		until = &t
	}

	rule, err := s.deps.Rules.SetMute(c.Request.Context(), id, true, until)
	if err != nil {
		s.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) unmuteRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rule, err := s.deps.Rules.SetMute(c.Request.Context(), id, false, nil)
	if err != nil {
		s.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) evaluatePending(c *gin.Context) {
	result, err := s.deps.Rules.EvaluatePending(c.Request.Context(), queryUint(c, "vessel_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ruleError(c *gin.Context, err error) {
	if errors.Is(err, alert.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// reportPeriod reads start/end (RFC3339), defaulting to the last 24 hours.
func (s *Server) reportPeriod(c *gin.Context) (time.Time, time.Time, bool) {
	end := s.deps.Clock.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return start, end, false
		}
		end = t
		start = end.Add(-24 * time.Hour)
	}
	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return start, end, false
		}
		start = t
	}
	return start, end, true
}

func (s *Server) alertReport(c *gin.Context) {
	start, end, ok := s.reportPeriod(c)
	if !ok {
		return
	}
	data, err := s.deps.Reports.Generate(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("format") == "html" {
		var buf bytes.Buffer
		if err := s.deps.Reports.RenderHTML(&buf, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) sendAlertReport(c *gin.Context) {
	if s.deps.Mailer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "e-mail is not configured"})
		return
	}
	start, end, ok := s.reportPeriod(c)
	if !ok {
		return
	}
	data, err := s.deps.Reports.Generate(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Mailer.Send(c.Request.Context(), data); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "report sent"})
}

func (s *Server) vessel(c *gin.Context) (*models.Vessel, bool) {
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	var v models.Vessel
	err := s.deps.DB.WithContext(c.Request.Context()).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "vessel not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return &v, true
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func queryBool(c *gin.Context, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	b := v == "true"
	return &b
}
