package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"updown/internal/repository"
	"updown/internal/service"
)

type AirdropHandler struct {
	Airdrops *service.AirdropDistributor
}

func (h *AirdropHandler) Register(public, admin gin.IRoutes) {
	public.GET("/airdrops", h.list)
	public.GET("/airdrops/:period/eligible", h.eligible)

	admin.POST("/airdrops/:period/dry-run", h.dryRun)
	admin.POST("/airdrops/:period/execute", h.execute)
	admin.POST("/airdrops/retry/:id", h.retry)
}

// @Summary List airdrop records
// @Tags airdrops
// @Param period query string false "daily|weekly|monthly"
// @Param period_key query string false "e.g. daily:2026-01-02"
// @Param status query string false "PENDING|PROCESSING|COMPLETED|FAILED"
// @Param user_id query string false "user id"
// @Success 200 {object} apiResponse
// @Router /api/airdrops [get]
func (h *AirdropHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAirdropParams{
		Limit:     limit,
		Offset:    offset,
		Period:    stringQueryPtr(c, "period"),
		PeriodKey: stringQueryPtr(c, "period_key"),
		Status:    stringQueryPtr(c, "status"),
		UserID:    stringQueryPtr(c, "user_id"),
	}
	if params.Status != nil {
		v := strings.ToUpper(*params.Status)
		params.Status = &v
	}
	items, total, err := h.Airdrops.List(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Tiered payout list
// @Tags airdrops
// @Param period path string true "daily|weekly|monthly|all"
// @Param tier query int false "1-4, 0 for all"
// @Success 200 {object} apiResponse
// @Router /api/airdrops/{period}/eligible [get]
func (h *AirdropHandler) eligible(c *gin.Context) {
	items, err := h.Airdrops.GetEligible(c.Request.Context(), c.Param("period"), intQuery(c, "tier", 0))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *AirdropHandler) dryRun(c *gin.Context) {
	h.run(c, true)
}

// @Summary Pay the period airdrop
// @Tags admin
// @Param period path string true "daily|weekly|monthly|all"
// @Param dry_run query bool false "report only"
// @Success 200 {object} apiResponse
// @Router /api/admin/airdrops/{period}/execute [post]
func (h *AirdropHandler) execute(c *gin.Context) {
	h.run(c, boolQueryDefault(c, "dry_run", false))
}

func (h *AirdropHandler) run(c *gin.Context, dryRun bool) {
	result, err := h.Airdrops.Execute(c.Request.Context(), c.Param("period"), dryRun)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *AirdropHandler) retry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.Airdrops.Retry(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if rec == nil {
		Error(c, http.StatusNotFound, "airdrop not found", nil)
		return
	}
	Ok(c, rec, nil)
}
