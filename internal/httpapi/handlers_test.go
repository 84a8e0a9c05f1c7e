package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/limiter"
	"pawnshop/backend/internal/service"
	"pawnshop/backend/internal/store/memory"
)

const (
	testSecret        = "test-secret-key-that-is-long-enough"
	testAdminPhone    = "0800111222"
	testAdminPassword = "admin-password"
)

type testEnv struct {
	api     *API
	handler http.Handler
	auth    *AuthManager
	repo    *memory.Store
}

// newTestEnv builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.New()
	auth := NewAuthManager(testSecret, time.Hour, repo)
	_, err := auth.EnsureAdmin(context.Background(), testAdminPhone, "Owner", testAdminPassword)
	require.NoError(t, err)

	svc := service.New(repo, zerolog.Nop(), 3)
	api := New(svc, auth, limiter.NewMemory(100, time.Minute), "*", zerolog.Nop())
	return &testEnv{api: api, handler: api.Handler(), auth: auth, repo: repo}
}

type testEnvelope struct {
	Code    int             `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	resp, err := e.auth.Login(context.Background(), domain.LoginRequest{PhoneNumber: testAdminPhone, Password: testAdminPassword})
	require.NoError(t, err)
	return resp.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.Equal(t, rec.Code, env.Code)
	}
	return rec, env
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Success", body.Status)

	var result map[string]any
	require.NoError(t, json.Unmarshal(body.Result, &result))
	require.Equal(t, true, result["ok"])
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestProtectedRoutesNeedAdminToken(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/product", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Error", body.Status)

	userToken, err := env.auth.sign(42, domain.RoleUser, time.Now().Add(time.Hour))
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodGet, "/api/order/last", userToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/product", env.adminToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderThenPrint(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	rec, body := env.do(t, http.MethodPost, "/api/order", token, map[string]any{
		"cus_name":      "Siti",
		"phone_number":  "0811",
		"address":       "Jl. Melati",
		"order_deposit": "10",
		"order_product_detail": []map[string]any{
			{"prod_name": "Ring", "order_amount": "2", "product_sell_price": "10"},
			{"prod_name": "Chain", "order_amount": "1", "product_sell_price": "5"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, body.Message)

	var created domain.TransactionResult
	require.NoError(t, json.Unmarshal(body.Result, &created))
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, 2, created.LineCount)

	rec, body = env.do(t, http.MethodGet, "/api/order/print?order_id=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt struct {
		Products []domain.LineItem `json:"products"`
		Summary  struct {
			Subtotal   string `json:"subtotal"`
			BalanceDue string `json:"balance_due"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body.Result, &receipt))
	require.Len(t, receipt.Products, 2)
	require.Equal(t, "25", receipt.Summary.Subtotal)
	require.Equal(t, "15", receipt.Summary.BalanceDue)

	rec, body = env.do(t, http.MethodGet, "/api/order/next-id", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"next_id":2}`, string(body.Result))

	rec, _ = env.do(t, http.MethodGet, "/api/order/print?order_id=9", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePawnValidationAndConflict(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	pawn := func(id int64, date, expire string) map[string]any {
		return map[string]any{
			"pawn_id":          id,
			"cus_name":         "Andi",
			"phone_number":     "0822",
			"pawn_deposit":     "100",
			"pawn_date":        date,
			"pawn_expire_date": expire,
			"pawn_product_detail": []map[string]any{
				{"prod_name": "gold bar", "pawn_amount": "1", "pawn_unit_price": "500"},
			},
		}
	}

	rec, body := env.do(t, http.MethodPost, "/api/pawn", token, pawn(7, "2026-06-02", "2026-06-01"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body.Message, "pawn_date")

	rec, _ = env.do(t, http.MethodPost, "/api/pawn", token, pawn(7, "2026-06-01", "2026-09-01"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/pawn", token, pawn(7, "2026-06-01", "2026-09-01"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body.Message, "already recorded")

	rec, body = env.do(t, http.MethodGet, "/api/pawn/search?phone_number=0822", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []domain.CustomerTransactions
	require.NoError(t, json.Unmarshal(body.Result, &found))
	require.Len(t, found, 1)
	require.Equal(t, 1, found[0].Total)
	require.Equal(t, "2026-09-01", found[0].Transactions[0].ExpireDate)
}

func TestSearchWithoutFilterIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	rec, _ := env.do(t, http.MethodPost, "/api/client", token, domain.ClientCreateRequest{Name: "Dewi", PhoneNumber: "0833"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/api/order", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, string(body.Result))

	rec, _ = env.do(t, http.MethodGet, "/api/order/client/99", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/order/client/abc", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/client/0833", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var customers []domain.Account
	require.NoError(t, json.Unmarshal(body.Result, &customers))
	require.Len(t, customers, 1)
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	rec, _ := env.do(t, http.MethodDelete, "/api/product/404", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/product", token, map[string]any{"prod_name": "Anklet", "unit_price": "20", "amount": 3})
	require.Equal(t, http.StatusCreated, rec.Code)
	var product domain.Product
	require.NoError(t, json.Unmarshal(body.Result, &product))
	require.Equal(t, "anklet", product.Name)

	rec, _ = env.do(t, http.MethodPost, "/api/product", token, map[string]any{"prod_name": "ANKLET"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/product", token, map[string]any{"prod_name": "anklet", "unit_price": "22"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/product", token, map[string]any{"prod_id": 55})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/product/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	require.NotZero(t, rec.Body.Len())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/client", env.adminToken(t), map[string]any{"cus_name": "X", "phone_number": "1", "role": "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
