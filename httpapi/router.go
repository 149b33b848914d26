// Package httpapi exposes the lending service as a REST API.
//
// Every response uses the same envelope so clients can branch on a single
// shape: {success, message, data, statusCode}. List endpoints nest a
// pagination block inside data.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the API router over the handler.
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", handler.Healthz).Methods(http.MethodGet)

	router.HandleFunc("/loans/stats/summary", handler.Stats).Methods(http.MethodGet)
	router.HandleFunc("/loans", handler.ListLoans).Methods(http.MethodGet)
	router.HandleFunc("/loans", handler.CreateLoan).Methods(http.MethodPost)
	router.HandleFunc("/loans/{id}", handler.GetLoan).Methods(http.MethodGet)
	router.HandleFunc("/loans/{id}/renew", handler.RenewLoan).Methods(http.MethodPost)
	router.HandleFunc("/loans/{id}/return", handler.ReturnLoan).Methods(http.MethodPost)
	router.HandleFunc("/loans/{id}/lost", handler.MarkAsLost).Methods(http.MethodPost)

	router.HandleFunc("/people/{id}/can-borrow", handler.CanBorrow).Methods(http.MethodGet)

	return router
}
