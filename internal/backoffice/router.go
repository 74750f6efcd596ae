// Package backoffice hosts the admin API served on a separate port.  It is
// never exposed to the public internet: an IP allowlist plus operator/admin
// JWT roles gate every route.
package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sideforge/binarymarket/internal/api/middleware"
	"github.com/sideforge/binarymarket/internal/backoffice/handler"
	"github.com/sideforge/binarymarket/internal/config"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/oracle"
	"github.com/sideforge/binarymarket/internal/repository"
	"github.com/sideforge/binarymarket/internal/wallet"
	"github.com/sideforge/binarymarket/internal/ws"
)

// BackofficeDeps bundles every dependency needed for the admin router.
// TradeRepo may be nil when persistence is disabled; the journal routes
// are simply not registered in that case.
type BackofficeDeps struct {
	Registry  *engine.Registry
	Ledger    *wallet.Ledger
	TradeRepo *repository.TradeRepository
	Feed      *oracle.Feed
	Hub       *ws.Hub
	Cfg       *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.Registry, deps.Ledger, deps.Feed, deps.Hub, deps.Cfg)
	marketH := handler.NewMarketAdminHandler(deps.Registry, deps.Feed)
	financeH := handler.NewFinanceHandler(deps.TradeRepo, deps.Ledger, deps.Cfg)

	jwtSecret := []byte(deps.Cfg.JWT.Secret)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware(jwtSecret))
	admin.Use(middleware.OperatorMiddleware())
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
			m.POST("/:id/resolve", marketH.Resolve)
			m.POST("/:id/decider", marketH.AttachThreshold)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/report", financeH.Report)
			fin.GET("/treasury", financeH.Treasury)
			if deps.TradeRepo != nil {
				fin.GET("/events/:market_id", financeH.MarketEvents)
			}
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}
