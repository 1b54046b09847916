package main

import (
	"net/http"

	"github.com/Shra1V32/server-rental-assistant/planmanager"
)

func newMux(server *apiServer, metrics *planmanager.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz)
	mux.Handle("/metrics", handleMetrics(metrics))
	mux.HandleFunc("/v1/plans", server.handlePlans)
	mux.HandleFunc("/v1/plans/", server.handlePlan)
	mux.HandleFunc("/v1/ledger/total", server.handleLedgerTotal)
	return mux
}
