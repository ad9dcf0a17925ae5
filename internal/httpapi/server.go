package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Marnel8/tracesys-sub003/internal/attendance"
	"github.com/Marnel8/tracesys-sub003/internal/auth"
	"github.com/Marnel8/tracesys-sub003/internal/capture"
	"github.com/Marnel8/tracesys-sub003/internal/cloudinary"
	"github.com/Marnel8/tracesys-sub003/internal/config"
	"github.com/Marnel8/tracesys-sub003/internal/httpmiddleware"
	"github.com/Marnel8/tracesys-sub003/internal/practicum"
	"github.com/Marnel8/tracesys-sub003/internal/queue"
	"github.com/Marnel8/tracesys-sub003/internal/store"
)

// Server wires the HTTP surface over the domain services.
type Server struct {
	cfg        config.App
	attendance *attendance.Service
	practicums *practicum.Repository
	authRepo   *auth.Repository
	captures   *capture.Manager
	cdn        *cloudinary.Client
	q          queue.Queue
	db         *store.DB
	rds        *store.Redis
}

// New creates a server. cdn may be nil when image storage is not
// configured; clock actions then proceed without a stored photo.
func New(
	cfg config.App,
	att *attendance.Service,
	practicums *practicum.Repository,
	authRepo *auth.Repository,
	captures *capture.Manager,
	cdn *cloudinary.Client,
	q queue.Queue,
	db *store.DB,
	rds *store.Redis,
) *Server {
	return &Server{
		cfg:        cfg,
		attendance: att,
		practicums: practicums,
		authRepo:   authRepo,
		captures:   captures,
		cdn:        cdn,
		q:          q,
		db:         db,
		rds:        rds,
	}
}

// Router builds the gin engine with the full route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(s.cfg.RateLimitPerMin, s.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	r.POST("/v1/invitations/accept", s.acceptInvitation)
	r.POST("/v1/auth/refresh", s.refreshTokens)

	bearer := auth.Bearer(s.cfg.JWTSigningKey, s.cfg.JWTIssuer)

	students := r.Group("/v1", bearer, auth.RequireRole(auth.RoleStudent))
	students.POST("/attendance/clock-in", s.clockIn)
	students.POST("/attendance/clock-out", s.clockOut)
	students.GET("/attendance/today", s.attendanceToday)

	students.POST("/capture", s.captureStart)
	students.POST("/capture/refresh-location", s.captureRefreshLocation)
	students.POST("/capture/frame", s.captureFrame)
	students.POST("/capture/photo", s.capturePhoto)
	students.DELETE("/capture/photo", s.captureRetake)
	students.POST("/capture/restart", s.captureRestart)
	students.POST("/capture/submit", s.captureSubmit)
	students.DELETE("/capture", s.captureCancel)

	authed := r.Group("/v1", bearer)
	authed.GET("/attendance", s.listAttendance)
	authed.GET("/attendance/:id", s.getAttendance)

	coordinators := r.Group("/v1", bearer, auth.RequireRole(auth.RoleCoordinator))
	coordinators.POST("/invitations", s.createInvitation)
	coordinators.PATCH("/attendance/:id/approval", s.setApproval)
	coordinators.POST("/practicums", s.createPracticum)
	coordinators.GET("/practicums", s.listPracticums)
	coordinators.GET("/practicums/:id", s.getPracticum)
	coordinators.PUT("/practicums/:id", s.updatePracticum)
	coordinators.POST("/practicums/:id/archive", s.archivePracticum)
	coordinators.POST("/practicums/:id/restore", s.restorePracticum)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	redisHealthy := s.rds.Healthy(c.Request.Context())
	dbHealthy := s.db.Healthy(c.Request.Context())
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
