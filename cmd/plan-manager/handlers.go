package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shra1V32/server-rental-assistant/planmanager"
)

type apiServer struct {
	manager *planmanager.Manager
	banner  connectionBanner
	// now is overridable in tests; zero value falls back to time.Now.
	now func() time.Time
}

func (s *apiServer) clockNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func handleMetrics(metrics *planmanager.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if metrics == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(w)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *apiServer) handlePlans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreate(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	}
}

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Owner) == "" || strings.TrimSpace(req.Duration) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "owner and duration are required", nil)
		return
	}

	amount := decimal.Zero
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "amount must be a decimal number", nil)
			return
		}
		if strings.TrimSpace(req.Currency) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "currency is required with amount", nil)
			return
		}
		amount = parsed
	}

	created, err := s.manager.CreatePlan(r.Context(), planmanager.CreatePlanParams{
		Owner:          req.Owner,
		Duration:       req.Duration,
		LinkedIdentity: req.LinkedIdentity,
		Amount:         amount,
		Currency:       req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createPlanResponse{
		planResponse: toPlanResponse(created, s.clockNow()),
		Secret:       created.Secret,
		Connection:   s.banner,
	})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	plans, err := s.manager.ListPlans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanListResponse(plans, s.clockNow()))
}

func (s *apiServer) handlePlan(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/plans/"), "/")
	if path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "owner is required", nil)
		return
	}
	parts := strings.Split(path, "/")
	owner := strings.TrimSpace(parts[0])
	if owner == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "owner is required", nil)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
			return
		}
		s.handleGet(w, r, owner)
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not_found", "unknown path", nil)
		return
	}

	switch parts[1] {
	case "extend":
		s.handleExtend(w, r, owner)
	case "reduce":
		s.handleReduce(w, r, owner)
	case "terminate":
		s.handleTerminate(w, r, owner)
	case "rotate":
		s.handleRotate(w, r, owner)
	case "link":
		s.handleLink(w, r, owner)
	case "payments":
		s.handlePayments(w, r, owner)
	case "ledger":
		s.handleLedger(w, r, owner)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown path", nil)
	}
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request, owner string) {
	stored, err := s.manager.GetPlan(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(stored, s.clockNow()))
}

func (s *apiServer) handleExtend(w http.ResponseWriter, r *http.Request, owner string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	var req durationRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	// "all" fans the extension out across every active plan.
	if owner == "all" {
		extended, err := s.manager.ExtendAll(r.Context(), req.Duration)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPlanListResponse(extended, s.clockNow()))
		return
	}

	extended, err := s.manager.ExtendPlan(r.Context(), owner, req.Duration)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(extended, s.clockNow()))
}

func (s *apiServer) handleReduce(w http.ResponseWriter, r *http.Request, owner string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	var req durationRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	reduced, err := s.manager.ReducePlan(r.Context(), owner, req.Duration)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(reduced, s.clockNow()))
}

func (s *apiServer) handleTerminate(w http.ResponseWriter, r *http.Request, owner string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	if err := s.manager.TerminatePlan(r.Context(), owner); err != nil {
		writeDomainError(w, err)
		return
	}
	stored, err := s.manager.GetPlan(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(stored, s.clockNow()))
}

func (s *apiServer) handleRotate(w http.ResponseWriter, r *http.Request, owner string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	rotated, err := s.manager.RotateSecret(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rotateResponse{
		planResponse: toPlanResponse(rotated, s.clockNow()),
		Secret:       rotated.Secret,
	})
}

func (s *apiServer) handleLink(w http.ResponseWriter, r *http.Request, owner string) {
	switch r.Method {
	case http.MethodPost:
		var req linkRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Identity) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "identity is required", nil)
			return
		}
		if err := s.manager.LinkIdentity(r.Context(), owner, req.Identity); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.manager.ClearIdentity(r.Context(), owner); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	}
}

func (s *apiServer) handlePayments(w http.ResponseWriter, r *http.Request, owner string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	var req paymentRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be a decimal number", nil)
		return
	}
	if strings.TrimSpace(req.Currency) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "currency is required", nil)
		return
	}

	entry, err := s.manager.RecordPayment(r.Context(), owner, amount, req.Currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLedgerEntryResponses([]planmanager.LedgerEntry{entry})[0])
}

func (s *apiServer) handleLedger(w http.ResponseWriter, r *http.Request, owner string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	if _, err := s.manager.GetPlan(r.Context(), owner); err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := s.manager.LedgerFor(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	balance, err := s.manager.BalanceFor(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse{
		Owner:   owner,
		Balance: balance.String(),
		Entries: toLedgerEntryResponses(entries),
	})
}

func (s *apiServer) handleLedgerTotal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	total, err := s.manager.TotalAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalResponse{Total: total.String()})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", nil)
		return false
	}
	return true
}
