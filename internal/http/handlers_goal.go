package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
	applog "risparmio/internal/log"
	"risparmio/internal/services"
)

type createGoalRequest struct {
	Title        string          `json:"title"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	SavingsRate  decimal.Decimal `json:"savings_rate"`
}

type updateGoalRequest struct {
	Title        *string          `json:"title"`
	TargetAmount *decimal.Decimal `json:"target_amount"`
	SavingsRate  *decimal.Decimal `json:"savings_rate"`
	Status       *string          `json:"status"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	goal, err := s.goals.CreateGoal(r.Context(), userID, sanitizeInput(req.Title), req.TargetAmount, req.SavingsRate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, newGoalResponse(goal))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	key := portfolioCacheKey(userID, includeInactive)
	if portfolio, ok := s.portfolioCache.Get(key); ok {
		writeJSON(w, http.StatusOK, newPortfolioResponse(portfolio))
		return
	}

	portfolio, err := s.goals.AllGoalsProgress(r.Context(), userID, includeInactive)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List goals failed",
			applog.FieldUserID, userID, applog.FieldError, err)
		writeDomainError(w, err)
		return
	}

	s.portfolioCache.Set(key, portfolio)
	writeJSON(w, http.StatusOK, newPortfolioResponse(portfolio))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	goalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	progress, err := s.goals.GoalProgress(r.Context(), userID, goalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalProgressResponse(progress))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	goalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	var req updateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := services.GoalUpdate{
		TargetAmount: req.TargetAmount,
		SavingsRate:  req.SavingsRate,
	}
	if req.Title != nil {
		clean := sanitizeInput(*req.Title)
		upd.Title = &clean
	}
	if req.Status != nil {
		status, err := core.ParseStatus(*req.Status)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		upd.Status = &status
	}

	goal, err := s.goals.UpdateGoal(r.Context(), userID, goalID, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, newGoalResponse(goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	goalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	if err := s.goals.DeleteGoal(r.Context(), userID, goalID); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.handleTransition(w, r, userID, s.goals.PauseGoal)
}

func (s *Server) handleResumeGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.handleTransition(w, r, userID, s.goals.ResumeGoal)
}

func (s *Server) handleCompleteGoal(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.handleTransition(w, r, userID, s.goals.CompleteGoal)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, userID uuid.UUID, op func(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error)) {
	goalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal id")
		return
	}

	goal, err := op(r.Context(), userID, goalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, newGoalResponse(goal))
}
