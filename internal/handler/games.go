package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"updown/internal/repository"
	"updown/internal/service"
)

type GameHandler struct {
	Games       *service.GameManager
	Predictions *service.PredictionService
}

func (h *GameHandler) Register(public, admin gin.IRoutes) {
	public.GET("/games", h.list)
	public.GET("/games/active", h.active)
	public.GET("/games/:id", h.get)
	public.GET("/games/:id/stats", h.stats)
	public.POST("/games/:id/predictions", h.predict)

	admin.POST("/games", h.create)
	admin.POST("/games/end-due", h.endDue)
	admin.POST("/games/end-active", h.endActive)
	admin.POST("/games/:id/close", h.close)
	admin.POST("/games/:id/cancel", h.cancel)
}

// @Summary List games
// @Tags games
// @Param status query string false "ACTIVE|COMPLETED|CANCELLED"
// @Param symbol query string false "symbol"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/games [get]
func (h *GameHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListGamesParams{
		Limit:  limit,
		Offset: offset,
		Status: stringQueryPtr(c, "status"),
		Symbol: stringQueryPtr(c, "symbol"),
	}
	if params.Status != nil {
		v := strings.ToUpper(*params.Status)
		params.Status = &v
	}
	if params.Symbol != nil {
		v := strings.ToUpper(*params.Symbol)
		params.Symbol = &v
	}
	items, total, err := h.Games.ListGames(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *GameHandler) active(c *gin.Context) {
	items, err := h.Games.ActiveGames(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Get game
// @Tags games
// @Param id path int true "game id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/games/{id} [get]
func (h *GameHandler) get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	game, err := h.Games.GetGame(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, game, nil)
}

// @Summary Game prediction stats
// @Tags games
// @Param id path int true "game id"
// @Success 200 {object} apiResponse
// @Router /api/games/{id}/stats [get]
func (h *GameHandler) stats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.Predictions.GetGameStats(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, view, nil)
}

type predictRequest struct {
	UserID     string  `json:"user_id"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// @Summary Submit a prediction
// @Tags games
// @Param id path int true "game id"
// @Param body body predictRequest true "UP or DOWN with 0-100 confidence"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Failure 422 {object} apiResponse
// @Router /api/games/{id}/predictions [post]
func (h *GameHandler) predict(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Predictions.SubmitPrediction(c.Request.Context(), service.SubmitPredictionInput{
		GameID:     id,
		UserID:     actingUser(c, req.UserID),
		Direction:  req.Direction,
		Confidence: req.Confidence,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, item, nil)
}

type createGameRequest struct {
	Symbol string `json:"symbol"`
	// Duration is a Go duration string such as "5m".
	Duration string `json:"duration"`
}

// @Summary Open a game
// @Tags admin
// @Param body body createGameRequest true "symbol and duration"
// @Success 200 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/admin/games [post]
func (h *GameHandler) create(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	var duration time.Duration
	if strings.TrimSpace(req.Duration) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(req.Duration))
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid duration", nil)
			return
		}
		duration = d
	}
	game, err := h.Games.CreateGame(c.Request.Context(), service.CreateGameInput{
		Symbol:   req.Symbol,
		Duration: duration,
		UserID:   actingUser(c, "admin"),
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, game, nil)
}

// @Summary Close a game at the current price
// @Tags admin
// @Param id path int true "game id"
// @Success 200 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/admin/games/{id}/close [post]
func (h *GameHandler) close(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	game, err := h.Games.CloseGame(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, game, nil)
}

func (h *GameHandler) cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	game, err := h.Games.CancelGame(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, game, nil)
}

func (h *GameHandler) endDue(c *gin.Context) {
	result, err := h.Games.EndDueGames(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *GameHandler) endActive(c *gin.Context) {
	result, err := h.Games.EndActiveGames(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, result, nil)
}
