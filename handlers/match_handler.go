package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/middleware"
	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/services"
)

type MatchHandler struct {
	matchService    services.MatchService
	shotService     services.ShotService
	endSetupService services.EndSetupService
}

func NewMatchHandler(
	matchService services.MatchService,
	shotService services.ShotService,
	endSetupService services.EndSetupService,
) *MatchHandler {
	return &MatchHandler{
		matchService:    matchService,
		shotService:     shotService,
		endSetupService: endSetupService,
	}
}

func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	var input services.StartMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.StartMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id":           match.ID,
		"game_mode":          match.Mode,
		"standard_end_count": match.StandardEndCount,
		"simulator_name":     match.SimulatorName,
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id":           match.ID,
		"name":               match.Name,
		"game_mode":          match.Mode,
		"first_team_name":    match.FirstTeamName,
		"second_team_name":   match.SecondTeamName,
		"standard_end_count": match.StandardEndCount,
		"simulator_name":     match.SimulatorName,
		"tournament_name":    match.TournamentName,
		"created_at":         match.CreatedAt,
	}
	if match.MixedDoubles != nil {
		response["positioned_stones_pattern"] = match.MixedDoubles.PositionedStonesPattern
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ConfigureTeam(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.ConfigureTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	side, err := h.matchService.ConfigureTeam(r.Context(), userID, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"side": side.String()}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) SubmitShot(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, ok := h.callerSide(w, r, matchID)
	if !ok {
		return
	}

	var params models.ShotParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.shotService.SubmitShot(r.Context(), matchID, side, params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) PerformEndSetup(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, ok := h.callerSide(w, r, matchID)
	if !ok {
		return
	}

	var input struct {
		Selection services.EndSetupSelection `json:"selection"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.endSetupService.PerformEndSetup(r.Context(), matchID, side, input.Selection)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) LatestState(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.matchService.LatestStateView(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) EndStates(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	endNumber, err := strconv.Atoi(chi.URLParam(r, "endNumber"))
	if err != nil || endNumber < 0 {
		badRequestResponse(w, r, errors.New("end number must be a non-negative integer"))
		return
	}

	views, err := h.matchService.EndStateViews(r.Context(), matchID, endNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	response := jsonResponse{"states": views}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// callerSide resolves the authenticated user's team slot; it writes the
// error response itself when resolution fails.
func (h *MatchHandler) callerSide(w http.ResponseWriter, r *http.Request, matchID uuid.UUID) (models.Side, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return 0, false
	}
	side, err := h.matchService.SideOf(r.Context(), userID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return 0, false
	}
	return side, true
}

func matchIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		return uuid.Nil, errors.New("match id must be a valid UUID")
	}
	return id, nil
}
