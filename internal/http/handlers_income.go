package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createIncomeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Source string          `json:"source"`
	Date   string          `json:"date"`
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req createIncomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	income, err := s.goals.AddIncome(r.Context(), userID, req.Amount, sanitizeInput(req.Source), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusCreated, newIncomeResponse(income))
}

func (s *Server) handleMonthIncome(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	year, month := parseYearMonth(r)

	total, err := s.goals.MonthlyIncome(r.Context(), userID, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, monthIncomeResponse{
		Year:          year,
		Month:         int(month),
		MonthlyIncome: total,
	})
}

func (s *Server) handleSavingsSummary(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	total, err := s.goals.TotalSaved(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, savingsSummaryResponse{TotalSaved: total})
}
