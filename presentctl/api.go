package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

type participantView struct {
	Id   model.Id `json:"id"`
	Role string   `json:"role"`
	Name string   `json:"name"`
}

// the hub routes: the relay websocket, metrics, and the joined participants
func newHubRouter(ctx context.Context, relay *present.Relay) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/hub", gin.WrapH(present.NewWebSocketRelayHandlerWithDefaults(ctx, relay)))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/participants", func(c *gin.Context) {
		participantViews := []*participantView{}
		for _, participant := range relay.Participants() {
			participantViews = append(participantViews, &participantView{
				Id:   participant.Id,
				Role: participant.Role.String(),
				Name: participant.HumanName,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"relay_id":     relay.RelayId(),
			"participants": participantViews,
		})
	})

	return router
}
