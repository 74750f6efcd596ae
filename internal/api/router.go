package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sideforge/binarymarket/internal/api/handler"
	"github.com/sideforge/binarymarket/internal/api/middleware"
	"github.com/sideforge/binarymarket/internal/config"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/repository"
	"github.com/sideforge/binarymarket/internal/wallet"
	"github.com/sideforge/binarymarket/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Registry  *engine.Registry
	Ledger    *wallet.Ledger
	TradeRepo *repository.TradeRepository
	Hub       *ws.Hub
	Metrics   prometheus.Gatherer
	Cfg       *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check & metrics ───────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	jwtSecret := []byte(deps.Cfg.JWT.Secret)
	authH := handler.NewAuthHandler(jwtSecret, deps.Cfg.JWT.AccessTTL)
	marketH := handler.NewMarketHandler(deps.Registry)
	walletH := handler.NewWalletHandler(deps.Ledger, deps.Cfg.Engine.FaucetEnabled, deps.Cfg.Engine.FaucetCap)
	tradeH := handler.NewTradeHandler(deps.TradeRepo)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(jwtSecret)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10)  // 10 req/s per IP for token issuing
	tradeRL := middleware.RateLimitMiddleware(30) // 30 req/s per IP for trading

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/token", authH.Token)
		}

		// ── Markets (public reads) ───────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("", marketH.List)
			markets.GET("/:id", marketH.GetByID)
			markets.GET("/:id/price", marketH.GetPrice)
			markets.GET("/:id/preview", marketH.PreviewBuy)
			if deps.TradeRepo != nil {
				markets.GET("/:id/events", tradeH.GetMarketEvents)
			}
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			authedMarkets := authed.Group("/markets")
			{
				authedMarkets.POST("", marketH.Create)
				authedMarkets.GET("/:id/balances", marketH.GetBalances)

				trading := authedMarkets.Group("")
				trading.Use(tradeRL)
				{
					trading.POST("/:id/buy", marketH.Buy)
					trading.POST("/:id/swap", marketH.Swap)
					trading.POST("/:id/burn", marketH.Burn)
					trading.POST("/:id/redeem", marketH.Redeem)
				}

				authedMarkets.POST("/:id/resolve", marketH.Resolve)
				authedMarkets.POST("/:id/fees/withdraw", marketH.WithdrawFees)
			}

			// Wallet
			walletGrp := authed.Group("/wallet")
			{
				walletGrp.GET("/balance", walletH.GetBalance)
				walletGrp.POST("/faucet", walletH.Faucet)
			}

			// Trade history
			if deps.TradeRepo != nil {
				authed.GET("/trades/my", tradeH.GetMyTrades)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
