package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"updown/internal/service"
)

type PlayerHandler struct {
	Predictions *service.PredictionService
	Scores      *service.ScoreAccumulator
	Rankings    *service.RankingAggregator
}

func (h *PlayerHandler) Register(public gin.IRoutes) {
	public.GET("/users/:user_id/games", h.history)
	public.GET("/users/:user_id/score", h.score)
	public.GET("/users/:user_id/scores", h.scores)
	public.GET("/users/:user_id/rankings", h.rankings)
}

func (h *PlayerHandler) userParam(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "me" {
		userID = actingUser(c, "")
	}
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return "", false
	}
	if !canActFor(c, userID) {
		Error(c, http.StatusForbidden, "forbidden", nil)
		return "", false
	}
	return userID, true
}

// @Summary User game history
// @Tags players
// @Param user_id path string true "user id or me"
// @Param page query int false "1-based page"
// @Param limit query int false "page size"
// @Success 200 {object} apiResponse
// @Router /api/users/{user_id}/games [get]
func (h *PlayerHandler) history(c *gin.Context) {
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)
	items, total, err := h.Predictions.GetUserGameHistory(c.Request.Context(), userID, page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, map[string]any{"page": page, "limit": limit, "total": total})
}

func (h *PlayerHandler) score(c *gin.Context) {
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	entry, err := h.Scores.CurrentEntry(c.Request.Context(), userID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, entry, nil)
}

func (h *PlayerHandler) scores(c *gin.Context) {
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, total, err := h.Scores.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PlayerHandler) rankings(c *gin.Context) {
	userID, ok := h.userParam(c)
	if !ok {
		return
	}
	items, err := h.Rankings.UserRankings(c.Request.Context(), userID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}
