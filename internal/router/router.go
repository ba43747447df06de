package router

import (
	"net/http"

	"github.com/lexbridge/backend/internal/auth"
	"github.com/lexbridge/backend/internal/cases"
	"github.com/lexbridge/backend/internal/dashboard"
	"github.com/lexbridge/backend/internal/registry"
)

// New returns an http.Handler that serves the API under /api/v1.
// expressInterest arrives pre-wrapped in its middleware chain
// (JWT auth -> reserve limit -> handler); everything else authenticates
// in the handler.
func New(
	authHandler *auth.Handler,
	registryHandler *registry.Handler,
	casesHandler *cases.Handler,
	dashHandler *dashboard.Handler,
	expressInterest http.Handler,
	suggestions http.HandlerFunc,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	mux.HandleFunc("GET "+base+"/lawyers", registryHandler.ListLawyers)
	mux.HandleFunc("POST "+base+"/lawyers", registryHandler.CreateProfile)
	mux.HandleFunc("GET "+base+"/lawyers/me", registryHandler.GetMyProfile)

	mux.HandleFunc("POST "+base+"/cases", casesHandler.CreateCase)
	mux.HandleFunc("GET "+base+"/cases", casesHandler.ListCases)
	mux.HandleFunc("GET "+base+"/cases/{id}", casesHandler.GetCase)
	mux.Handle("POST "+base+"/cases/{id}/interest", expressInterest)
	mux.HandleFunc("POST "+base+"/cases/{id}/hire", casesHandler.HireLawyer)
	mux.HandleFunc("POST "+base+"/cases/{id}/close", casesHandler.CloseCase)
	mux.HandleFunc("GET "+base+"/cases/{id}/interested", casesHandler.InterestedLawyers)
	mux.HandleFunc("GET "+base+"/cases/{id}/suggestions", suggestions)

	mux.HandleFunc("GET "+base+"/account/me", dashHandler.GetMe)
	mux.HandleFunc("POST "+base+"/account/topup", dashHandler.TopUp)
	mux.HandleFunc("GET "+base+"/juris-ledger", dashHandler.ListJurisLedger)
	mux.HandleFunc("GET "+base+"/notifications", dashHandler.ListNotifications)

	return mux
}
