package handler

import (
	"github.com/gin-gonic/gin"

	"updown/internal/service"
)

type RankingHandler struct {
	Rankings *service.RankingAggregator
}

func (h *RankingHandler) Register(public, admin gin.IRoutes) {
	public.GET("/rankings/:period", h.get)
	admin.POST("/rankings/:period/aggregate", h.aggregate)
	admin.POST("/rankings/:period/recompute", h.recompute)
}

// @Summary Period leaderboard
// @Tags rankings
// @Param period path string true "daily|weekly|monthly|all"
// @Param metric query string false "score|wins|streak|win_rate"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/rankings/{period} [get]
func (h *RankingHandler) get(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	page, err := h.Rankings.GetRanking(c.Request.Context(), c.Param("period"), limit, offset, c.Query("metric"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	meta := paginationMeta(limit, offset, page.Total)
	meta["period"] = page.Period
	meta["metric"] = page.Metric
	Ok(c, page.Items, meta)
}

func (h *RankingHandler) aggregate(c *gin.Context) {
	result, err := h.Rankings.AggregatePeriod(c.Request.Context(), c.Param("period"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *RankingHandler) recompute(c *gin.Context) {
	records, err := h.Rankings.RecomputeRanks(c.Request.Context(), c.Param("period"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, map[string]any{"period": c.Param("period"), "ranked": len(records)}, nil)
}
