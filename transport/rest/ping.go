package rest

import (
	"net/http"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type PingHandler interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
}

type pingHandler struct {
	party entity.Party
}

// NewPingHandler - answers health checks with the party this node plays as.
func NewPingHandler(party entity.Party) PingHandler {
	return &pingHandler{party: party}
}

type pingResponse struct {
	Status string       `json:"status"`
	Party  entity.Party `json:"party"`
}

func (that *pingHandler) PingHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{Status: "pong", Party: that.party})
}
