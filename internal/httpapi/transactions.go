package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawnshop/backend/internal/domain"
)

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.CreateOrder(r.Context(), actorFrom(r), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, "order created", result)
}

func (a *API) handleCreatePawn(w http.ResponseWriter, r *http.Request) {
	var req domain.PawnCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.CreatePawn(r.Context(), actorFrom(r), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, "pawn created", result)
}

// handleSearchTransactions filters customers by the phone_number, cus_name and
// cus_id query parameters.
func (a *API) handleSearchTransactions(kind domain.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		id, err := parseID(query.Get("cus_id"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}

		result, err := a.service.SearchTransactions(r.Context(), actorFrom(r), kind, domain.CustomerFilter{
			ID:          id,
			PhoneNumber: query.Get("phone_number"),
			Name:        query.Get("cus_name"),
		})
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "", result)
	}
}

func (a *API) handleCustomersWith(kind domain.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := a.service.CustomersWithTransactions(r.Context(), actorFrom(r), kind)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "", customers)
	}
}

func (a *API) handleCustomerTransactions(kind domain.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"))
		if err != nil || id == 0 {
			writeError(w, r, http.StatusBadRequest, errInvalidID)
			return
		}

		result, err := a.service.CustomerTransactions(r.Context(), actorFrom(r), kind, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "", result)
	}
}

func (a *API) handleNextID(kind domain.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next, err := a.service.NextTransactionID(r.Context(), actorFrom(r), kind)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "", domain.NextIDResponse{NextID: next})
	}
}

func (a *API) handleLastTransactions(kind domain.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receipts, err := a.service.LastTransactions(r.Context(), actorFrom(r), kind)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "", receipts)
	}
}

// handlePrint prints one transaction when order_id (or pawn_id) is given and
// every transaction otherwise.
func (a *API) handlePrint(kind domain.TransactionKind) http.HandlerFunc {
	param := string(kind) + "_id"
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r.URL.Query().Get(param))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}

		receipts, err := a.service.PrintTransactions(r.Context(), actorFrom(r), kind, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		if id > 0 && len(receipts) == 1 {
			writeEnvelope(w, http.StatusOK, "", receipts[0])
			return
		}
		writeEnvelope(w, http.StatusOK, "", receipts)
	}
}
