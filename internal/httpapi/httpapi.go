package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/limiter"
	"pawnshop/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  limiter.Limiter
	logger        zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, loginLimiter limiter.Limiter, allowedOrigin string, logger zerolog.Logger) *API {
	if loginLimiter == nil {
		loginLimiter = limiter.NewMemory(5, time.Minute)
	}
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  loginLimiter,
		logger:        logger,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(loggerMiddleware(a.logger))
	r.Use(a.securityHeaders)
	r.Use(middleware.StripSlashes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleAdmin))

			r.Route("/client", func(r chi.Router) {
				r.Post("/", a.handleCreateClient)
				r.Get("/", a.handleListClients)
				r.Get("/{phone}", a.handleClientsByPhone)
			})

			r.Route("/order", a.transactionRoutes(domain.KindOrder))
			r.Route("/pawn", a.transactionRoutes(domain.KindPawn))

			r.Route("/product", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Post("/", a.handleCreateProduct)
				r.Put("/", a.handleUpdateProduct)
				r.Get("/export", a.handleExportProducts)
				r.Delete("/{id}", a.handleDeleteProduct)
			})
		})
	})

	return r
}

func (a *API) transactionRoutes(kind domain.TransactionKind) func(r chi.Router) {
	return func(r chi.Router) {
		if kind == domain.KindPawn {
			r.Post("/", a.handleCreatePawn)
		} else {
			r.Post("/", a.handleCreateOrder)
		}
		r.Get("/", a.handleSearchTransactions(kind))
		r.Get("/search", a.handleSearchTransactions(kind))
		r.Get("/all_client", a.handleCustomersWith(kind))
		r.Get("/client/{id}", a.handleCustomerTransactions(kind))
		r.Get("/next-id", a.handleNextID(kind))
		r.Get("/last", a.handleLastTransactions(kind))
		r.Get("/print", a.handlePrint(kind))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, "", map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	allowed, err := a.loginLimiter.Allow(r.Context(), clientKey(r))
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("login limiter unavailable")
	} else if !allowed {
		writeError(w, r, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, err)
			return
		}
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "", resp)
}

// envelope wraps every JSON response. The transport status always equals Code.
type envelope struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, code int, message string, result any) {
	status := "Success"
	if code >= 400 {
		status = "Error"
	}
	writeJSON(w, code, envelope{Code: code, Status: status, Message: message, Result: result})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// 5xx bodies carry a generic message; the cause only goes to the log.
	msg := err.Error()
	if status >= 500 {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeEnvelope(w, status, msg, nil)
}

func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForKind(service.KindOf(err))
	if status >= 500 {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeEnvelope(w, status, "internal server error", nil)
		return
	}

	var serviceErr *service.Error
	if errors.As(err, &serviceErr) {
		writeEnvelope(w, status, serviceErr.Message, nil)
		return
	}
	writeEnvelope(w, status, err.Error(), nil)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// parseID reads an optional positive integer. A blank value yields zero.
func parseID(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id < 1 {
		return 0, errInvalidID
	}
	return id, nil
}
