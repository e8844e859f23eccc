package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Up/Down Prediction Engine

Timed up/down price prediction rounds with scoring, period rankings and
tiered airdrops. Usually reached through the easyweb3 PaaS gateway at
/api/v1/services/updown/.

## Auth

When auth.jwt_secret is set, /api/* routes need a Bearer token. Player
routes take the user id from the token subject; /api/admin/* routes need
role=admin. Health, metrics and docs stay open.

## Routes

- GET /healthz, GET /readyz, GET /metrics
- GET /swagger/index.html
- GET /api/games, GET /api/games/active, GET /api/games/:id, GET /api/games/:id/stats
- POST /api/games/:id/predictions
- GET /api/users/:user_id/games, GET /api/users/:user_id/score, GET /api/users/:user_id/scores, GET /api/users/:user_id/rankings (user_id may be "me")
- GET /api/rankings/:period?metric=score|wins|streak|win_rate
- GET /api/airdrops, GET /api/airdrops/:period/eligible?tier=N
- POST /api/admin/games, POST /api/admin/games/:id/close, POST /api/admin/games/:id/cancel
- POST /api/admin/games/end-due, POST /api/admin/games/end-active
- POST /api/admin/rankings/:period/aggregate, POST /api/admin/rankings/:period/recompute
- POST /api/admin/airdrops/:period/dry-run, POST /api/admin/airdrops/:period/execute
- POST /api/admin/airdrops/retry/:id
- POST /api/admin/scores/adjust
- GET /api/admin/settings, PUT /api/admin/settings/:name
`)
	})
}
