package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pyx-backend/internal/intent"
	"pyx-backend/internal/model"
	"pyx-backend/internal/pagectx"
)

// PageContext resolves ?path= to its page id.
func PageContext(c *gin.Context) {
	path := c.DefaultQuery("path", "/")
	c.JSON(http.StatusOK, model.PageContextResponse{Path: path, Page: pagectx.Resolve(path)})
}

// ClassifyIntent runs the intent classifier without touching any visitor.
func ClassifyIntent(c *gin.Context) {
	var req model.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, intent.Classify(req.Message))
}

// ListIntents returns the intents the classifier can assign, in the order
// they are evaluated.
func ListIntents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"intents":  intent.Intents(),
		"fallback": intent.General,
	})
}
