// Package queryapi exposes the engine's read surface (and a small
// bearer-gated admin surface for registering/removing federations) over
// HTTP, using gin the way the teacher's internal/api package does.
package queryapi

import (
	"encoding/hex"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/internal/supervisor"
	"github.com/fedimint-observer/observer/pkg/models"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	store *store.Store
	super *supervisor.Supervisor
}

// SetupRouter builds the gin engine: public read routes plus a bearer
// gated admin group for federation lifecycle operations.
func SetupRouter(st *store.Store, super *supervisor.Supervisor) *gin.Engine {
	r := gin.Default()

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
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &Handler{store: st, super: super}
	publicLimiter := NewRateLimiter("public", 120, 20)
	adminLimiter := NewRateLimiter("admin", 10, 3)

	pub := r.Group("/api/v1")
	pub.Use(publicLimiter.Middleware())
	{
		pub.GET("/federations", h.listFederations)
		pub.GET("/federations/totals", h.totals)
		pub.GET("/federations/:id/config", h.clientConfig)
		pub.GET("/federations/:id/utxos", h.utxos)
		pub.GET("/federations/:id/transactions/histogram", h.histogram)
		pub.GET("/federations/:id/health", h.health)
		pub.GET("/federations/:id/gateways", h.gateways)
		pub.GET("/federations/:id/nostr/rating", h.nostrRating)
	}

	// Federation lifecycle ops each trigger a DB write, and adding one also
	// makes a live guardian call (FetchClientConfig against the first
	// listed guardian), so the admin surface gets its own, much tighter
	// budget than read traffic.
	admin := r.Group("/api/v1/admin")
	admin.Use(AdminAuthMiddleware(), adminLimiter.Middleware())
	{
		admin.POST("/federations", h.addFederation)
		admin.DELETE("/federations/:id", h.removeFederation)
	}

	return r
}

func parseFedIdParam(c *gin.Context) (models.FedId, bool) {
	var fedId models.FedId
	raw := c.Param("id")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(fedId) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid federation id"})
		return fedId, false
	}
	copy(fedId[:], b)
	return fedId, true
}

func (h *Handler) listFederations(c *gin.Context) {
	feds, err := h.store.ListFederations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, len(feds))
	for i, f := range feds {
		guardians := make([]gin.H, len(f.Guardians))
		for j, g := range f.Guardians {
			guardians[j] = gin.H{"peerIndex": g.PeerIndex, "baseUrl": g.BaseURL}
		}
		out[i] = gin.H{
			"fedId":     f.FedId.String(),
			"guardians": guardians,
			"createdAt": f.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"federations": out})
}

func (h *Handler) totals(c *gin.Context) {
	totals, err := h.store.Totals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, len(totals))
	for i, t := range totals {
		out[i] = gin.H{
			"fedId":            t.FedId.String(),
			"totalUtxoSats":    t.TotalUtxoSats,
			"utxoCount":        t.UtxoCount,
			"transactionCount": t.TransactionCount,
			"sessionCount":     t.SessionCount,
		}
	}
	c.JSON(http.StatusOK, gin.H{"totals": out})
}

func (h *Handler) clientConfig(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	cfg, err := h.store.ClientConfig(c.Request.Context(), fedId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "federation not found"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", cfg)
}

func (h *Handler) utxos(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	utxos, err := h.store.Utxos(c.Request.Context(), fedId, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"utxos": utxos, "limit": limit, "offset": offset})
}

func (h *Handler) histogram(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	bucketSeconds, _ := strconv.Atoi(c.DefaultQuery("bucketSeconds", "3600"))
	if bucketSeconds <= 0 {
		bucketSeconds = 3600
	}

	buckets, err := h.store.TransactionHistogram(c.Request.Context(), fedId, time.Duration(bucketSeconds)*time.Second)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (h *Handler) health(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	reports, err := h.store.LatestGuardianHealth(c.Request.Context(), fedId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guardians": reports})
}

func (h *Handler) gateways(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	gateways, err := h.store.CurrentGateways(c.Request.Context(), fedId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gateways": gateways})
}

func (h *Handler) nostrRating(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	agg, err := h.store.NostrVoteAggregateFor(c.Request.Context(), fedId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voteCount": agg.VoteCount, "avgStars": agg.AvgStars})
}

func (h *Handler) addFederation(c *gin.Context) {
	var req struct {
		FedId     string `json:"fedId"`
		Guardians []struct {
			PeerIndex int    `json:"peerIndex"`
			BaseURL   string `json:"baseUrl"`
		} `json:"guardians"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var fedId models.FedId
	b, err := hex.DecodeString(req.FedId)
	if err != nil || len(b) != len(fedId) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fedId"})
		return
	}
	copy(fedId[:], b)

	guardians := make(models.GuardianSet, len(req.Guardians))
	for i, g := range req.Guardians {
		guardians[i] = models.Guardian{PeerIndex: g.PeerIndex, BaseURL: g.BaseURL}
	}

	if err := h.super.AddFederation(c.Request.Context(), fedId, guardians); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added", "fedId": fedId.String()})
}

func (h *Handler) removeFederation(c *gin.Context) {
	fedId, ok := parseFedIdParam(c)
	if !ok {
		return
	}
	if err := h.super.RemoveFederation(c.Request.Context(), fedId); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
