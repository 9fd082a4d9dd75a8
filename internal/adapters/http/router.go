package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Duet/internal/adapters/signal"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/sanitize"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a stable per-browser token in the session
// cookie. Reconnects are only allowed to reclaim connections opened under the
// same token.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

type roomURI struct {
	Room string `uri:"room" binding:"required,max=40"`
}

// RoomStatus is what a client needs to know before trying to join.
type RoomStatus struct {
	Exists   bool `json:"exists"`
	Members  int  `json:"members"`
	Capacity int  `json:"capacity"`
	Full     bool `json:"full"`
	Secured  bool `json:"secured"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctrl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("DuetSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Stats())
	})

	api.GET("/rooms/:room", func(c *gin.Context) {
		var uri roomURI
		if err := c.ShouldBindUri(&uri); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
			return
		}
		id := domain.RoomID(sanitize.String(uri.Room, domain.MaxRoomIDLen))
		info, ok := o.RoomStatus(id)
		c.JSON(http.StatusOK, RoomStatus{
			Exists:   ok,
			Members:  info.MemberCount,
			Capacity: info.Capacity,
			Full:     info.Capacity > 0 && info.MemberCount >= info.Capacity,
			Secured:  info.Secured,
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
