package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawnshop/backend/internal/domain"
)

var errInvalidID = errors.New("id must be a positive integer")

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), actorFrom(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "", products)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	created, err := a.service.CreateProduct(r.Context(), actorFrom(r), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, "product created", created)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	updated, err := a.service.UpdateProduct(r.Context(), actorFrom(r), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "product updated", updated)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil || id == 0 {
		writeError(w, r, http.StatusBadRequest, errInvalidID)
		return
	}

	if _, err := a.service.DeleteProduct(r.Context(), actorFrom(r), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "product deleted", nil)
}
