package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamelaunch/prereg/internal/services"
	"github.com/gamelaunch/prereg/pkg/response"
)

// RankingHandler serves the public leaderboard.
type RankingHandler struct {
	ranking *services.RankingService
}

// NewRankingHandler constructs a RankingHandler.
func NewRankingHandler(ranking *services.RankingService) (*RankingHandler, error) {
	if ranking == nil {
		return nil, fmt.Errorf("ranking handler: ranking service is required")
	}
	return &RankingHandler{ranking: ranking}, nil
}

// Snapshot returns the leaderboard and funnel statistics.
func (h *RankingHandler) Snapshot(c *gin.Context) {
	snap, err := h.ranking.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, snap)
}
