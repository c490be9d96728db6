package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	applog "risparmio/internal/log"
)

type createContributionRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

func (s *Server) handleCreateContribution(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	goalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	var req createContributionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	progress, completed, err := s.goals.Contribute(r.Context(), userID, goalID, req.Amount, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if completed {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Goal reached its target",
			applog.FieldGoalID, goalID, applog.FieldUserID, userID)
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, contributeResponse{
		Goal:          newGoalResponse(progress.Goal),
		Progress:      newProjectionResponse(progress.Projection),
		GoalCompleted: completed,
	})
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	goalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	contributions, err := s.goals.ListContributions(r.Context(), userID, goalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]contributionResponse, 0, len(contributions))
	for _, c := range contributions {
		out = append(out, newContributionResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteContribution(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	contributionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contribution id")
		return
	}

	if err := s.goals.DeleteContribution(r.Context(), userID, contributionID); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}
