// Package httpapi is the operator control surface: start, hang up, observe.
// It carries no call logic of its own.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/call"
	"github.com/roadwatch/dashcall/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *call.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Status())
	})

	api.POST("/call/audio", func(c *gin.Context) {
		if err := ctl.StartAudioCall(ctx); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "status": ctl.Status()})
			return
		}
		c.JSON(http.StatusAccepted, ctl.Status())
	})

	api.POST("/call/video", func(c *gin.Context) {
		if err := ctl.StartVideoCall(ctx); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "status": ctl.Status()})
			return
		}
		c.JSON(http.StatusAccepted, ctl.Status())
	})

	api.POST("/hangup", func(c *gin.Context) {
		ctl.EndCall()
		c.JSON(http.StatusOK, ctl.Status())
	})

	return r
}
