package main

import (
	"time"

	"github.com/Shra1V32/server-rental-assistant/plan"
	"github.com/Shra1V32/server-rental-assistant/planmanager"
)

const timeFormat = time.RFC3339

type planResponse struct {
	Owner          string `json:"owner"`
	State          string `json:"state"`
	CreatedAt      string `json:"createdAt"`
	ExpiresAt      string `json:"expiresAt"`
	Remaining      string `json:"remaining"`
	LinkedIdentity string `json:"linkedIdentity,omitempty"`
}

type connectionBanner struct {
	SSHHost string `json:"sshHost"`
	SSHPort string `json:"sshPort"`
	Notes   string `json:"notes,omitempty"`
}

// createPlanResponse is the only place besides rotation where the secret is
// returned; list and fetch responses never carry it.
type createPlanResponse struct {
	planResponse
	Secret     string           `json:"secret"`
	Connection connectionBanner `json:"connection"`
}

type rotateResponse struct {
	planResponse
	Secret string `json:"secret"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type ledgerEntryResponse struct {
	EntryID        string `json:"entryId"`
	Amount         string `json:"amount"`
	OriginalAmount string `json:"originalAmount"`
	Currency       string `json:"currency"`
	EnteredAt      string `json:"enteredAt"`
}

type ledgerResponse struct {
	Owner   string                `json:"owner"`
	Balance string                `json:"balance"`
	Entries []ledgerEntryResponse `json:"entries"`
}

type totalResponse struct {
	Total string `json:"total"`
}

func toPlanResponse(p plan.Plan, now time.Time) planResponse {
	return planResponse{
		Owner:          p.Owner,
		State:          string(p.State()),
		CreatedAt:      p.CreatedAt.UTC().Format(timeFormat),
		ExpiresAt:      p.ExpiresAt.UTC().Format(timeFormat),
		Remaining:      plan.FormatDuration(p.Remaining(now)),
		LinkedIdentity: p.LinkedIdentity,
	}
}

func toPlanListResponse(plans []plan.Plan, now time.Time) planListResponse {
	out := planListResponse{Plans: make([]planResponse, 0, len(plans))}
	for _, p := range plans {
		out.Plans = append(out.Plans, toPlanResponse(p, now))
	}
	return out
}

func toLedgerEntryResponses(entries []planmanager.LedgerEntry) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ledgerEntryResponse{
			EntryID:        entry.EntryID,
			Amount:         entry.Amount.String(),
			OriginalAmount: entry.OriginalAmount.String(),
			Currency:       entry.Currency,
			EnteredAt:      entry.EnteredAt.UTC().Format(timeFormat),
		})
	}
	return out
}
