package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/schoollib/loanengine/lending"
	"github.com/schoollib/loanengine/loans"
)

var (
	errInvalidPageParam  = errors.New("page must be an integer")
	errInvalidLimitParam = errors.New("limit must be an integer")
)

// Handler serves the loan management REST API on top of the lending service.
type Handler struct {
	service *lending.Service
	logger  loans.ContextualLogger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger loans.ContextualLogger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a Handler over the lending service.
func NewHandler(service *lending.Service, options ...HandlerOption) *Handler {
	handler := &Handler{service: service}

	for _, option := range options {
		option(handler)
	}

	return handler
}

type createLoanRequest struct {
	PersonID     string `json:"personId"`
	ResourceID   string `json:"resourceId"`
	Quantity     int    `json:"quantity"`
	Observations string `json:"observations"`
}

// CreateLoan handles POST /loans.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	personID, err := uuid.Parse(request.PersonID)
	if err != nil {
		writeError(w, http.StatusBadRequest, loans.ErrInvalidPersonID.Error())
		return
	}

	resourceID, err := uuid.Parse(request.ResourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, loans.ErrInvalidResourceID.Error())
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), lending.CreateLoanCommand{
		PersonID:     personID,
		ResourceID:   resourceID,
		Quantity:     request.Quantity,
		Observations: request.Observations,
	})
	if err != nil {
		h.writeServiceError(w, r, "create loan", err)
		return
	}

	writeSuccess(w, http.StatusCreated, "loan created", loan)
}

// GetLoan handles GET /loans/{id}.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanIDFromPath(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.writeServiceError(w, r, "get loan", err)
		return
	}

	writeSuccess(w, http.StatusOK, "loan found", view)
}

// ListLoans handles GET /loans.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, pagination, err := h.service.ListLoans(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, "list loans", err)
		return
	}

	writeSuccess(w, http.StatusOK, "loans listed", PaginatedData{
		Data:       views,
		Pagination: pagination,
	})
}

type renewLoanRequest struct {
	AdditionalDays int    `json:"additionalDays"`
	Observations   string `json:"observations"`
}

// RenewLoan handles POST /loans/{id}/renew.
func (h *Handler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanIDFromPath(w, r)
	if !ok {
		return
	}

	var request renewLoanRequest
	if err := decodeOptionalBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.service.RenewLoan(r.Context(), loanID, request.AdditionalDays, request.Observations)
	if err != nil {
		h.writeServiceError(w, r, "renew loan", err)
		return
	}

	writeSuccess(w, http.StatusOK, "loan renewed", response)
}

type returnLoanRequest struct {
	ReturnObservations string `json:"returnObservations"`
	ResourceCondition  string `json:"resourceCondition"`
}

// ReturnLoan handles POST /loans/{id}/return.
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanIDFromPath(w, r)
	if !ok {
		return
	}

	var request returnLoanRequest
	if err := decodeOptionalBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.service.ReturnLoan(r.Context(), loanID, request.ReturnObservations, request.ResourceCondition)
	if err != nil {
		h.writeServiceError(w, r, "return loan", err)
		return
	}

	writeSuccess(w, http.StatusOK, "loan returned", response)
}

type markAsLostRequest struct {
	Observations string `json:"observations"`
}

// MarkAsLost handles POST /loans/{id}/lost.
func (h *Handler) MarkAsLost(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanIDFromPath(w, r)
	if !ok {
		return
	}

	var request markAsLostRequest
	if err := decodeOptionalBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.service.MarkAsLost(r.Context(), loanID, request.Observations)
	if err != nil {
		h.writeServiceError(w, r, "mark loan as lost", err)
		return
	}

	writeSuccess(w, http.StatusOK, "loan marked as lost", loan)
}

// CanBorrow handles GET /people/{id}/can-borrow.
func (h *Handler) CanBorrow(w http.ResponseWriter, r *http.Request) {
	personID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, loans.ErrInvalidPersonID.Error())
		return
	}

	result, err := h.service.CanBorrow(r.Context(), personID)
	if err != nil {
		h.writeServiceError(w, r, "can-borrow check", err)
		return
	}

	writeSuccess(w, http.StatusOK, "eligibility evaluated", result)
}

// Stats handles GET /loans/stats/summary.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "stats summary", err)
		return
	}

	writeSuccess(w, http.StatusOK, "stats computed", summary)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}

func (h *Handler) loanIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return uuid.Nil, false
	}

	return loanID, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	statusCode := statusCodeFor(err)

	if h.logger != nil {
		if statusCode >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "operation", operation, "error", err.Error())
		} else {
			h.logger.InfoContext(r.Context(), "request rejected", "operation", operation, "error", err.Error())
		}
	}

	writeError(w, statusCode, messageFor(err, statusCode))
}

// decodeOptionalBody decodes the request body into target, treating an empty
// body as the zero value.
func decodeOptionalBody(r *http.Request, target any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}

	return json.NewDecoder(r.Body).Decode(target)
}

func parseListQuery(r *http.Request) (lending.ListLoansQuery, error) {
	var query lending.ListLoansQuery

	values := r.URL.Query()

	if raw := values.Get("personId"); raw != "" {
		personID, err := uuid.Parse(raw)
		if err != nil {
			return query, loans.ErrInvalidPersonID
		}

		query.PersonID = personID
	}

	if raw := values.Get("resourceId"); raw != "" {
		resourceID, err := uuid.Parse(raw)
		if err != nil {
			return query, loans.ErrInvalidResourceID
		}

		query.ResourceID = resourceID
	}

	query.Status = loans.Status(values.Get("status"))
	query.OverdueOnly = values.Get("isOverdue") == "true"

	var err error

	if query.LoanedFrom, err = parseTimeParam(values.Get("loanedFrom")); err != nil {
		return query, err
	}

	if query.LoanedUntil, err = parseTimeParam(values.Get("loanedUntil")); err != nil {
		return query, err
	}

	if query.DueFrom, err = parseTimeParam(values.Get("dueFrom")); err != nil {
		return query, err
	}

	if query.DueUntil, err = parseTimeParam(values.Get("dueUntil")); err != nil {
		return query, err
	}

	if raw := values.Get("page"); raw != "" {
		if query.Page.Number, err = strconv.Atoi(raw); err != nil {
			return query, errInvalidPageParam
		}
	}

	if raw := values.Get("limit"); raw != "" {
		if query.Page.Limit, err = strconv.Atoi(raw); err != nil {
			return query, errInvalidLimitParam
		}
	}

	return query, nil
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates.
func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}

	return time.Parse("2006-01-02", raw)
}
