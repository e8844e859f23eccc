package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"updown/internal/auth"
)

// Router groups the handlers mounted under /api.
type Router struct {
	Games    *GameHandler
	Players  *PlayerHandler
	Rankings *RankingHandler
	Airdrops *AirdropHandler
	Admin    *AdminHandler
	Health   *HealthHandler
	JWT      auth.JWT
}

// Mount registers health on r, player routes under /api and operator
// routes under /api/admin.
func (rt *Router) Mount(r *gin.Engine) {
	if rt.Health != nil {
		rt.Health.Register(r)
	}
	public := r.Group("/api", auth.Middleware(rt.JWT))
	admin := r.Group("/api/admin", auth.Middleware(rt.JWT, auth.RoleAdmin))
	if rt.Games != nil {
		rt.Games.Register(public, admin)
	}
	if rt.Players != nil {
		rt.Players.Register(public)
	}
	if rt.Rankings != nil {
		rt.Rankings.Register(public, admin)
	}
	if rt.Airdrops != nil {
		rt.Airdrops.Register(public, admin)
	}
	if rt.Admin != nil {
		rt.Admin.Register(admin)
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
