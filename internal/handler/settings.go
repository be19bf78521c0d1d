package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pyx-backend/internal/model"
)

func (h *ChatHandler) GetPreferences(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	c.JSON(http.StatusOK, a.Preferences())
}

// UpdatePreferences accepts a partial document; absent fields keep their
// current values.
func (h *ChatHandler) UpdatePreferences(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	prefs := a.Preferences()
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.UpdatePreferences(c.Request.Context(), prefs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.Preferences())
}

func (h *ChatHandler) GetProfile(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	c.JSON(http.StatusOK, a.Profile())
}

func (h *ChatHandler) UpdateProfile(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	profile := a.Profile()
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.UpdateProfile(c.Request.Context(), profile); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.Profile())
}

// GetAIConfig never returns API keys in clear.
func (h *ChatHandler) GetAIConfig(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"config":    a.AIConfig(),
		"active":    a.ProviderName(),
		"providers": model.KnownProviders,
	})
}

func (h *ChatHandler) UpdateAIConfig(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	var cfg model.AIServiceConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.UpdateAIConfig(c.Request.Context(), cfg); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"config": a.AIConfig(),
		"active": a.ProviderName(),
	})
}

func (h *ChatHandler) Recommendations(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "3"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": a.Recommendations(limit)})
}

// Forget deletes everything stored for the visitor.
func (h *ChatHandler) Forget(c *gin.Context) {
	if err := h.manager.Forget(c.Request.Context(), c.Param("visitor_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Visitor data deleted"})
}
