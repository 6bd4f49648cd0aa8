// Package httpapi is the thin HTTP/JSON adapter over the core pipeline:
// gin routing, CORS, bearer-token auth, per-IP rate limiting, and a
// websocket hub for live scoring-run events. None of the
// algorithms live here — every handler is a short translation from an
// HTTP request to a core-package call and back to JSON. Routing layout,
// CORS handling, and the public/protected route split are carried over
// from the teacher's internal/api/routes.go.
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/internal/health"
	"github.com/rawblock/aml-risk-platform/internal/risk"
	"github.com/rawblock/aml-risk-platform/internal/scoring"
	"github.com/rawblock/aml-risk-platform/internal/store"
	"github.com/rawblock/aml-risk-platform/internal/subgraph"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// APIHandler bundles the core components the read API reads from.
type APIHandler struct {
	st      *store.Store
	handle  *graph.Handle
	loader  *graph.Loader
	driver  *scoring.Driver
	checker *health.Checker
	hub     *Hub
	cfg     models.RiskConfig
	txSource string
}

// SetupRouter builds the gin engine: CORS for everyone, a public group
// (health, ready, stream) and a protected group (everything else) gated
// by AuthMiddleware and rate-limited.
func SetupRouter(st *store.Store, handle *graph.Handle, loader *graph.Loader, driver *scoring.Driver, checker *health.Checker, hub *Hub, cfg models.RiskConfig, txSource string) *gin.Engine {
	r := gin.Default()
	r.Use(requestIDMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &APIHandler{st: st, handle: handle, loader: loader, driver: driver, checker: checker, hub: hub, cfg: cfg, txSource: txSource}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/ready", h.handleReady)
		pub.GET("/stream", hub.Subscribe)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware(os.Getenv("API_AUTH_TOKEN"), os.Getenv("GIN_MODE") == "release"))
	protected.Use(NewRateLimiter(60, 10).Middleware())
	{
		protected.POST("/graph/reload", h.handleReloadGraph)
		protected.POST("/score/run", h.handleRunScore)
		protected.GET("/scores/top", h.handleTopScores)
		protected.GET("/scores/:wallet", h.handleLatestScore)
		protected.GET("/scores/:wallet/explain", h.handleExplainScore)
		protected.GET("/ingestion/status", h.handleIngestionStatus)
		protected.GET("/subgraph/:wallet", h.handleWalletSubgraph)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	summary, err := h.checker.Evaluate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":      health.StatusDegraded,
			"graph_ready": h.handle.Load() != nil,
			"graph_error": err.Error(),
			"tx_source":   h.txSource,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      summary.Status,
		"graph_ready": summary.GraphReady,
		"graph_error": summary.GraphError,
		"tx_source":   summary.TxSource,
	})
}

func (h *APIHandler) handleReady(c *gin.Context) {
	summary, err := h.checker.Evaluate(c.Request.Context())
	if err != nil || summary.Status != health.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": statusOrUnknown(summary, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func statusOrUnknown(s health.Summary, err error) string {
	if err != nil {
		return health.StatusDegraded
	}
	return s.Status
}

func (h *APIHandler) handleReloadGraph(c *gin.Context) {
	result, err := h.loader.Reload(c.Request.Context())
	if err != nil {
		h.checker.SetGraphError(err.Error())
		writeError(c, err)
		return
	}
	h.checker.SetGraphError("")
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"tx_count": result.TxCount,
		"nodes":    result.Nodes,
		"edges":    result.Edges,
	})
}

func (h *APIHandler) handleRunScore(c *gin.Context) {
	result, err := h.driver.RunScore(c.Request.Context(), h.txSource, h.cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.hub != nil {
		broadcastEvent(h.hub, "score_run_complete", gin.H{"run_id": result.RunID, "wallets_scored": result.WalletsScored})
	}
	c.JSON(http.StatusOK, gin.H{"run_id": result.RunID, "wallets_scored": result.WalletsScored})
}

func (h *APIHandler) handleTopScores(c *gin.Context) {
	limit := clampInt(queryInt(c, "limit", 20), 1, 500)
	scores, err := h.st.GetTopScores(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}

func (h *APIHandler) handleLatestScore(c *gin.Context) {
	wallet := c.Param("wallet")
	score, err := h.st.GetLatestScoreForWallet(c.Request.Context(), wallet)
	if err != nil {
		writeError(c, err)
		return
	}
	if score == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no score recorded for wallet"})
		return
	}
	c.JSON(http.StatusOK, score)
}

func (h *APIHandler) handleExplainScore(c *gin.Context) {
	wallet := c.Param("wallet")
	snap := h.handle.Load()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph is not loaded"})
		return
	}

	perHopLimit := clampInt(queryInt(c, "per_hop_limit", 20), 1, 100)
	totalLimit := clampInt(queryInt(c, "total_limit", 50), 1, 200)

	var maxHops *int
	if raw := c.Query("max_hops"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			maxHops = &v
		}
	}

	result := risk.ExplainWallet(snap, wallet, h.cfg.HopWeights, h.cfg.DegreeNormalize, maxHops, perHopLimit, totalLimit)
	if !result.InGraph {
		c.JSON(http.StatusNotFound, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) handleIngestionStatus(c *gin.Context) {
	summary, err := h.checker.Evaluate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *APIHandler) handleWalletSubgraph(c *gin.Context) {
	wallet := c.Param("wallet")
	snap := h.handle.Load()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph is not loaded"})
		return
	}
	if !snap.HasNode(wallet) {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not in graph"})
		return
	}

	hops := clampInt(queryInt(c, "hops", 2), 1, 4)
	nodeLimit := clampInt(queryInt(c, "node_limit", 50), 10, 500)
	edgeLimit := clampInt(queryInt(c, "edge_limit", 200), 50, 3000)
	minAmount := queryFloat(c, "min_amount", 0)
	onlyConnected := c.Query("only_connected") == "true"

	layers := risk.KHopLayers(snap, wallet, hops)
	var allWallets []string
	for _, l := range layers {
		allWallets = append(allWallets, l...)
	}

	scores, err := h.st.GetScoresForWallets(c.Request.Context(), allWallets)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := subgraph.Extract(snap, scores, subgraph.Params{
		Center:        wallet,
		Hops:          hops,
		NodeLimit:     nodeLimit,
		EdgeLimit:     edgeLimit,
		MinAmount:     minAmount,
		OnlyConnected: onlyConnected,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func broadcastEvent(hub *Hub, eventType string, payload gin.H) {
	body := gin.H{"type": eventType, "data": payload}
	if b, err := json.Marshal(body); err == nil {
		hub.Broadcast(b)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
