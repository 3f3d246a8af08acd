package medium

import (
	"net/http"
	"strings"
	"time"

	"github.com/exbotanical/seance/internal/auth"
	"github.com/exbotanical/seance/internal/node"
	"github.com/exbotanical/seance/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admin is the medium's operator HTTP surface: health, readiness, circle
// snapshots, and prometheus metrics. It never touches the channel itself.
type Admin struct {
	service  *Service
	router   *gin.Engine
	appeared time.Time
}

var _ node.Node = (*Admin)(nil)

func NewAdmin(svc *Service, corsOrigins []string) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminRequestLogger(observability.ComponentLogger("medium-admin")))
	r.Use(observability.AdminRequestMetrics(svc.Node()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		service:  svc,
		router:   r,
		appeared: time.Now(),
	}
	a.registerRoutes()
	return a
}

func (a *Admin) NodeID() string {
	return a.service.Node()
}

func (a *Admin) Kind() string {
	return "medium"
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.appeared).String(),
			"service": a.service.Node(),
			"version": "0.0.1",
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(a.appeared).String(),
			"service": a.service.Node(),
			"version": "0.0.1",
		})
	})

	// Health probes stay open; the introspection routes sit behind the
	// shared operator token when one is configured.
	guarded := a.router.Group("/", requireToken(a.service.cfg.AdminToken))

	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded.GET("/circle", func(c *gin.Context) {
		tolerance := a.service.cfg.HeartbeatTolerance
		members := a.service.Server().SnapshotCircle()
		out := make([]gin.H, 0, len(members))
		for _, member := range members {
			out = append(out, gin.H{
				"origin":          member.Origin,
				"sitter_id":       member.SitterID,
				"incorporated_at": member.IncorporatedAt,
				"last_seen_at":    member.LastSeenAt,
				"syn_count":       member.SynCount,
				"stale":           member.Stale(tolerance),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"members":   out,
			"tolerance": tolerance.String(),
		})
	})
}

// requireToken demands a matching bearer credential on every request. An
// empty configured token leaves the group open.
func requireToken(token string) gin.HandlerFunc {
	if strings.TrimSpace(token) == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	validator := auth.StaticToken{Token: token}
	return func(c *gin.Context) {
		presented, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}
		if err := validator.Validate(presented); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// defaultAdminOrigin keeps a local dashboard working when no CORS origins
// are configured. cors.New rejects an empty allow list outright.
const defaultAdminOrigin = "http://localhost:3000"

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		out = append(out, defaultAdminOrigin)
	}
	return out
}
