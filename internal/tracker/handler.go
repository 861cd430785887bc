package tracker

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chapterwatch/pkg/models"
)

type Handler struct {
	Tracker *Tracker
	Repo    *Repo
}

func NewHandler(t *Tracker, repo *Repo) *Handler {
	return &Handler{Tracker: t, Repo: repo}
}

// RegisterItemRoutes mounts the watchlist endpoints. Mutations go
// through the auth middleware; reads are public.
func (h *Handler) RegisterItemRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.GET("", h.list)           // GET /items
	rg.GET("/:key", h.get)       // GET /items/:key
	rg.POST("", auth, h.discover)
	rg.DELETE("/:key", auth, h.remove)
}

// RegisterSettingsRoutes mounts the filter threshold endpoints.
func (h *Handler) RegisterSettingsRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.GET("", h.getSettings)
	rg.PUT("", auth, h.putSettings)
}

func (h *Handler) list(c *gin.Context) {
	visibleOnly := c.Query("visible") == "true"
	items := h.Tracker.Items(visibleOnly)
	c.JSON(http.StatusOK, gin.H{
		"total":       len(items),
		"min_chapter": h.Tracker.MinChapter(),
		"items":       items,
	})
}

func (h *Handler) get(c *gin.Context) {
	item, ok := h.Tracker.Get(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

type discoverReq struct {
	Key     string `json:"key"`
	MangaID string `json:"manga_id"`
	Title   string `json:"title"`
}

// discover is the ingress for the page-side discovery collaborator:
// one call per listing entry it sees. Re-posting a known key is a
// no-op, so callers do not need to dedupe.
func (h *Handler) discover(c *gin.Context) {
	var req discoverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req.Key = strings.TrimSpace(req.Key)
	req.MangaID = strings.TrimSpace(req.MangaID)
	if req.Key == "" {
		req.Key = uuid.NewString()
	}

	if err := h.Repo.UpsertItem(c.Request.Context(), models.WatchEntry{
		Key:     req.Key,
		MangaID: req.MangaID,
		Title:   req.Title,
	}); err != nil {
		log.Printf("[items] persist %s failed: %v", req.Key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persist failed"})
		return
	}

	created := h.Tracker.Discover(req.Key, req.MangaID, req.Title)

	item, _ := h.Tracker.Get(req.Key)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, item)
}

func (h *Handler) remove(c *gin.Context) {
	key := c.Param("key")

	// drop the live handle first so an unknown key leaves the store
	// untouched
	if !h.Tracker.Remove(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if _, err := h.Repo.DeleteItem(c.Request.Context(), key); err != nil {
		log.Printf("[items] delete %s failed: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": key})
}

func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"min_chapter": h.Tracker.MinChapter()})
}

type settingsReq struct {
	MinChapter *float64 `json:"min_chapter"`
}

func (h *Handler) putSettings(c *gin.Context) {
	var req settingsReq
	if err := c.ShouldBindJSON(&req); err != nil || req.MinChapter == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_chapter required"})
		return
	}
	min := *req.MinChapter
	if min < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_chapter must be >= 0"})
		return
	}

	if err := h.Repo.SetMinChapter(c.Request.Context(), min); err != nil {
		log.Printf("[settings] persist failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persist failed"})
		return
	}

	h.Tracker.SetMinChapter(min)
	c.JSON(http.StatusOK, gin.H{"min_chapter": min})
}
