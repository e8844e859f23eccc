package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"updown/internal/service"
)

// AdminHandler carries operator-only routes that are not tied to one
// engine component.
type AdminHandler struct {
	Scores   *service.ScoreAccumulator
	Settings *service.SystemSettingsService
}

func (h *AdminHandler) Register(admin gin.IRoutes) {
	admin.POST("/scores/adjust", h.adjust)
	admin.GET("/settings", h.listSwitches)
	admin.PUT("/settings/:name", h.putSwitch)
}

func (h *AdminHandler) adjust(c *gin.Context) {
	var req service.AdjustInput
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	entry, err := h.Scores.Adjust(c.Request.Context(), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, entry, nil)
}

func (h *AdminHandler) listSwitches(c *gin.Context) {
	items, err := h.Settings.List(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		enabled := false
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, map[string]any{
			"name":        strings.TrimPrefix(it.Key, "feature."),
			"key":         it.Key,
			"enabled":     enabled,
			"description": it.Description,
			"updated_at":  it.UpdatedAt,
		})
	}
	Ok(c, out, nil)
}

type putSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminHandler) putSwitch(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	key := "feature." + strings.TrimPrefix(name, "feature.")
	if err := h.Settings.SetEnabled(c.Request.Context(), key, req.Enabled); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, map[string]any{
		"name":    strings.TrimPrefix(key, "feature."),
		"key":     key,
		"enabled": req.Enabled,
	}, nil)
}
