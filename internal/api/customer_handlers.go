package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appointly/appointment-booking/internal/customer"
)

func createCustomerHandler(svc *customer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CustomerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		c, err := svc.Create(r.Context(), customer.CreateInput{
			Name:        req.Name,
			PhoneNumber: req.PhoneNumber,
			Email:       req.Email,
		})
		if err != nil {
			handleCustomerError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCustomerResponse(c))
	}
}

func updateCustomerHandler(svc *customer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		var req CustomerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		c, err := svc.Update(r.Context(), id, customer.CreateInput{
			Name:        req.Name,
			PhoneNumber: req.PhoneNumber,
			Email:       req.Email,
		})
		if err != nil {
			handleCustomerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCustomerResponse(c))
	}
}

func getCustomerHandler(svc *customer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		c, err := svc.Get(r.Context(), id)
		if err != nil {
			handleCustomerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCustomerResponse(c))
	}
}

func listCustomersHandler(svc *customer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := svc.ListAll(r.Context())
		if err != nil {
			handleCustomerError(w, err)
			return
		}

		out := make([]CustomerResponse, len(customers))
		for i := range customers {
			out[i] = toCustomerResponse(&customers[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func deleteCustomerHandler(svc *customer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleCustomerError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func customerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_customer_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleCustomerError(w http.ResponseWriter, err error) {
	var vErr *customer.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_customer", vErr.Error())
	case errors.Is(err, customer.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "customer_not_found", err.Error())
	case errors.Is(err, customer.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
