package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Shra1V32/server-rental-assistant/plan"
	"github.com/Shra1V32/server-rental-assistant/planmanager"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps manager errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var notFound planmanager.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "not_found", "plan not found", map[string]string{"owner": notFound.Owner})
		return
	}
	var duplicate planmanager.DuplicateOwnerError
	if errors.As(err, &duplicate) {
		writeError(w, http.StatusConflict, "duplicate_owner", "a plan already exists for this owner", map[string]string{"owner": duplicate.Owner})
		return
	}
	var invalidDuration plan.InvalidDurationError
	if errors.As(err, &invalidDuration) {
		writeError(w, http.StatusBadRequest, "invalid_duration", "duration must contain at least one digit-unit pair", nil)
		return
	}
	var wouldExpire planmanager.WouldExpireImmediatelyError
	if errors.As(err, &wouldExpire) {
		writeError(w, http.StatusConflict, "would_expire_immediately", "reduction would move the expiry into the past", map[string]string{"owner": wouldExpire.Owner})
		return
	}
	var linked planmanager.IdentityAlreadyLinkedError
	if errors.As(err, &linked) {
		writeError(w, http.StatusConflict, "identity_already_linked", "plan already has a linked identity", map[string]string{"owner": linked.Owner})
		return
	}
	var provision planmanager.ProvisionError
	if errors.As(err, &provision) {
		writeError(w, http.StatusBadGateway, "provision_failed", "account provisioning failed", map[string]string{"owner": provision.Owner, "op": provision.Op})
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
}
