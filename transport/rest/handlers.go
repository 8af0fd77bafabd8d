package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/board"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
)

type gameUseCase interface {
	NewGame(ctx context.Context, name string, opponent entity.Party) (entity.Outcome, error)
	Setup(ctx context.Context, gameName string, placements []board.Placement) (entity.Outcome, error)
	PlayTurn(ctx context.Context, gameName string, coord entity.Coordinate) (entity.Outcome, error)
	Status(ctx context.Context, gameName string) (entity.Status, error)
	History(ctx context.Context, gameName string) ([]repository.JournalEntry, error)
}

type Handlers interface {
	NewGame(w http.ResponseWriter, r *http.Request)
	Setup(w http.ResponseWriter, r *http.Request)
	PlayTurn(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
}

type handlers struct {
	logger *slog.Logger
	games  gameUseCase
}

func NewHandlers(logger *slog.Logger, games gameUseCase) Handlers {
	return &handlers{
		logger: logger.With("component", "rest_handlers"),
		games:  games,
	}
}

type newGameRequest struct {
	Name     string       `json:"name"`
	Opponent entity.Party `json:"opponent"`
}

// setupRequest - either seven compact ships ("A0S") in fleet order or explicit placements.
type setupRequest struct {
	Ships      []string          `json:"ships,omitempty"`
	Placements []board.Placement `json:"placements,omitempty"`
}

type turnRequest struct {
	Coordinate entity.Coordinate `json:"coordinate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *handlers) NewGame(w http.ResponseWriter, r *http.Request) {
	var request newGameRequest
	if !that.decode(w, r, &request) {
		return
	}

	outcome, err := that.games.NewGame(r.Context(), request.Name, request.Opponent)
	if err != nil {
		that.fail(w, "NewGame", err)
		return
	}

	writeJSON(w, http.StatusCreated, outcome)
}

func (that *handlers) Setup(w http.ResponseWriter, r *http.Request) {
	var request setupRequest
	if !that.decode(w, r, &request) {
		return
	}

	placements := request.Placements
	if len(request.Ships) > 0 {
		fleet, err := board.ParseFleet(request.Ships)
		if err != nil {
			that.fail(w, "Setup", err)
			return
		}

		placements = fleet
	}

	outcome, err := that.games.Setup(r.Context(), r.PathValue("name"), placements)
	if err != nil {
		that.fail(w, "Setup", err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (that *handlers) PlayTurn(w http.ResponseWriter, r *http.Request) {
	var request turnRequest
	if !that.decode(w, r, &request) {
		return
	}

	outcome, err := that.games.PlayTurn(r.Context(), r.PathValue("name"), request.Coordinate)
	if err != nil {
		that.fail(w, "PlayTurn", err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (that *handlers) Status(w http.ResponseWriter, r *http.Request) {
	status, err := that.games.Status(r.Context(), r.PathValue("name"))
	if err != nil {
		that.fail(w, "Status", err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (that *handlers) History(w http.ResponseWriter, r *http.Request) {
	entries, err := that.games.History(r.Context(), r.PathValue("name"))
	if err != nil {
		that.fail(w, "History", err)
		return
	}

	if entries == nil {
		entries = []repository.JournalEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (that *handlers) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		that.logger.Info("failed to decode request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return false
	}

	return true
}

func (that *handlers) fail(w http.ResponseWriter, method string, err error) {
	status := statusOf(err)

	log := that.logger.With("method", method)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Info("request refused", "error", err)
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

var statuses = []struct {
	err    error
	status int
}{
	{apperror.ErrGameNotFound, http.StatusNotFound},
	{apperror.ErrPeerUnresponsive, http.StatusGatewayTimeout},
	{apperror.ErrAlreadyRevealed, http.StatusConflict},
	{apperror.ErrGameAlreadyExists, http.StatusConflict},
	{apperror.ErrNotYourTurn, http.StatusConflict},
	{apperror.ErrGameFinished, http.StatusConflict},
	{apperror.ErrSubstrateRejected, http.StatusConflict},
	{apperror.ErrPeerRefused, http.StatusConflict},
	{apperror.ErrNotParticipant, http.StatusForbidden},
	{apperror.ErrOutOfGrid, http.StatusUnprocessableEntity},
	{apperror.ErrInvalidPlacement, http.StatusUnprocessableEntity},
	{apperror.ErrValidationRejected, http.StatusUnprocessableEntity},
}

func statusOf(err error) int {
	for _, candidate := range statuses {
		if errors.Is(err, candidate.err) {
			return candidate.status
		}
	}

	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// the status line is already out, nothing left to report
	_ = json.NewEncoder(w).Encode(body)
}
