package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawnshop/backend/internal/domain"
)

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	created, err := a.service.CreateClient(r.Context(), actorFrom(r), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, "customer created", created)
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListClients(r.Context(), actorFrom(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "", customers)
}

func (a *API) handleClientsByPhone(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.SearchClients(r.Context(), actorFrom(r), domain.CustomerFilter{
		PhoneNumber: chi.URLParam(r, "phone"),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "", customers)
}
