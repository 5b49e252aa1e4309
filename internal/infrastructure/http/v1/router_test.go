package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/catalogs"
	"salesledger/internal/domain/invoicing"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/domain/registers/stock"
	"salesledger/internal/infrastructure/cache"
	v1 "salesledger/internal/infrastructure/http/v1"
	"salesledger/internal/infrastructure/http/v1/handlers"
	"salesledger/internal/infrastructure/http/v1/middleware"
	"salesledger/internal/infrastructure/observability"
	"salesledger/internal/infrastructure/storage/memory"
	"salesledger/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var now = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func money(s string) types.Money { return types.MustMoney(s) }

type apiResponse struct {
	Code    int
	Header  http.Header
	Body    map[string]any
	RawBody []byte
}

type testAPI struct {
	router *gin.Engine
	stock  *stock.Service
}

func newTestAPI(t *testing.T, store middleware.IdempotencyStore) *testAPI {
	t.Helper()
	ctx := context.Background()

	catalog := memory.NewCatalog()
	num := numbering.NewService(memory.NewResolutionRepo(), numbering.WithClock(clock))
	stk := stock.NewService(memory.NewStockRepo(), stock.NewNegativeStockLocations(nil))
	acc := accounting.NewService(accounting.NewGenerator(accounting.AccountPlan{
		Receivable:         "1305",
		ClientAdvance:      "2805",
		TaxPayable:         "2408",
		DefaultIncome:      "4135",
		DefaultCostOfSales: "6135",
		DefaultInventory:   "1435",
	}), memory.NewPostingRepo())

	svc := invoicing.NewService(invoicing.Deps{
		Numbering:      num,
		Stock:          stk,
		Accounting:     acc,
		Items:          catalog,
		Clients:        catalog,
		PaymentMethods: catalog,
		Sales:          memory.NewSaleRepo(),
		Returns:        memory.NewReturnRepo(),
	}, invoicing.WithClock(clock))

	for _, in := range []numbering.CreateInput{
		{BranchID: "b1", Kind: numbering.KindSale, Prefix: "FE"},
		{BranchID: "b1", Kind: numbering.KindCredit, Prefix: "NC"},
	} {
		in.RangeFrom, in.RangeTo = 1, 5000
		in.ValidFrom = now.AddDate(0, -1, 0)
		in.ValidUntil = now.AddDate(1, 0, 0)
		_, err := num.Create(ctx, in)
		require.NoError(t, err)
	}
	catalog.PutItem(catalogs.Item{ID: "laptop", Name: "Laptop", Price: money("500000"), Cost: money("250000"), TaxPct: money("19"), Controlled: true})
	catalog.PutItem(catalogs.Item{ID: "setup", Name: "Setup service", Price: money("100000"), TaxPct: money("0")})
	_, err := stk.Receive(ctx, "laptop", "b1", types.NewQuantity(10), money("300000"), "test", "opening")
	require.NoError(t, err)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:      logger.NewNop(),
		Invoicing:   svc,
		Numbering:   num,
		Stock:       stk,
		Clock:       clock,
		Idempotency: store,
		Metrics:     observability.NewMetrics(),
		Version:     "test",
		Storage:     "memory",
		HealthChecks: map[string]handlers.Pinger{
			"noop": handlers.PingFunc(func(context.Context) error { return nil }),
		},
	})
	return &testAPI{router: router, stock: stk}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	resp := apiResponse{Code: w.Code, Header: w.Header(), RawBody: w.Body.Bytes()}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp.Body), w.Body.String())
	}
	return resp
}

func saleBody(n int) map[string]any {
	return map[string]any{
		"branch_id": "b1",
		"lines":     []map[string]any{{"item_id": "laptop", "quantity": n}},
	}
}

func saleID(t *testing.T, resp apiResponse) string {
	t.Helper()
	sale, ok := resp.Body["sale"].(map[string]any)
	require.True(t, ok, string(resp.RawBody))
	return sale["id"].(string)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "memory", resp.Body["storage"])

	resp = api.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body["status"])
}

func TestIssueAndReadSale(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(2))
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.RawBody))
	assert.Equal(t, "FE-001", saleID(t, resp))
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))

	sale := resp.Body["sale"].(map[string]any)
	totals := sale["totals"].(map[string]any)
	total, err := types.NewMoneyFromString(totals["total"].(string))
	require.NoError(t, err)
	assert.True(t, total.Equal(money("1190000")), total.String())

	resp = api.do(t, http.MethodGet, "/api/v1/sales/FE-001", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "issued", resp.Body["status"])
	assert.Equal(t, "pending", resp.Body["validation_status"])

	resp = api.do(t, http.MethodGet, "/api/v1/documents/FE-001/postings", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 2, resp.Body["count"])

	resp = api.do(t, http.MethodGet, "/api/v1/stock/laptop/b1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 8, resp.Body["quantity"])
}

func TestIssueSaleErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "missing lines",
			path:   "/api/v1/sales",
			body:   map[string]any{"branch_id": "b1"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "discount above 100",
			path: "/api/v1/sales",
			body: map[string]any{"branch_id": "b1", "lines": []map[string]any{
				{"item_id": "setup", "quantity": 1, "discount_pct": "150"},
			}},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "negative receipt cost",
			path:   "/api/v1/stock/receipts",
			body:   map[string]any{"item_id": "laptop", "location_id": "b1", "quantity": 1, "unit_cost": "-5"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "shortage",
			path:   "/api/v1/sales",
			body:   saleBody(11),
			status: http.StatusUnprocessableEntity,
			code:   "INSUFFICIENT_STOCK",
		},
		{
			name:   "unknown branch",
			path:   "/api/v1/sales",
			body:   map[string]any{"branch_id": "b9", "lines": []map[string]any{{"item_id": "setup", "quantity": 1}}},
			status: http.StatusNotFound,
			code:   "RESOLUTION_NOT_FOUND",
		},
		{
			name:   "unknown sale",
			path:   "/api/v1/sales/FE-404/returns",
			body:   map[string]any{"reason": "damaged", "lines": []map[string]any{{"item_id": "laptop", "quantity": 1}}},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)
			resp := api.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.Code, string(resp.RawBody))
			assert.Equal(t, tt.code, resp.Body["code"])
		})
	}
}

func TestValidationErrorNamesFields(t *testing.T) {
	api := newTestAPI(t, nil)
	resp := api.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"branch_id": "b1",
		"lines":     []map[string]any{{"item_id": "setup", "quantity": 1, "tax_pct": "101"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, string(resp.RawBody))

	details, ok := resp.Body["details"].(map[string]any)
	require.True(t, ok, string(resp.RawBody))
	fields, ok := details["fields"].(map[string]any)
	require.True(t, ok, string(resp.RawBody))
	assert.Equal(t, "lte=100", fields["lines[0].tax_pct"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `salesledger_http_requests_total{code="200",method="GET",route="/health"} 1`)
}

func TestShortageListsEveryItem(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/api/v1/stock/validate", map[string]any{
		"location_id": "b1",
		"lines": []map[string]any{
			{"item_id": "laptop", "quantity": 12},
			{"item_id": "setup", "quantity": 50},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code, string(resp.RawBody))
	assert.Equal(t, false, resp.Body["ok"])
	shortages := resp.Body["shortages"].([]any)
	require.Len(t, shortages, 1)
	assert.Equal(t, "laptop", shortages[0].(map[string]any)["item_id"])
}

func TestReturnAndVoid(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(3))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = api.do(t, http.MethodPost, "/api/v1/sales/FE-001/returns", map[string]any{
		"reason": "damaged",
		"lines":  []map[string]any{{"item_id": "laptop", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.RawBody))
	ret := resp.Body["return"].(map[string]any)
	assert.Equal(t, "NC-001", ret["id"])
	assert.Equal(t, "partially_returned", resp.Body["sale"].(map[string]any)["status"])

	resp = api.do(t, http.MethodPost, "/api/v1/sales/FE-001/returns", map[string]any{
		"reason": "damaged",
		"lines":  []map[string]any{{"item_id": "laptop", "quantity": 5}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "INVALID_RETURN_QUANTITY", resp.Body["code"])

	resp = api.do(t, http.MethodGet, "/api/v1/sales/FE-001/can-void", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, resp.Body["can_void"])

	resp = api.do(t, http.MethodPost, "/api/v1/sales/FE-001/returns", map[string]any{"reason": "void"})
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.RawBody))
	assert.Equal(t, "voided", resp.Body["sale"].(map[string]any)["status"])

	resp = api.do(t, http.MethodGet, "/api/v1/sales/FE-001/returns", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 2, resp.Body["count"])

	resp = api.do(t, http.MethodGet, "/api/v1/returns/NC-002", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "void", resp.Body["reason"])

	resp = api.do(t, http.MethodGet, "/api/v1/stock/laptop/b1", nil)
	assert.EqualValues(t, 10, resp.Body["quantity"])

	resp = api.do(t, http.MethodGet, "/api/v1/accounting/balances", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	debit, credit := types.Zero(), types.Zero()
	for _, item := range resp.Body["items"].([]any) {
		b := item.(map[string]any)
		d, err := types.NewMoneyFromString(b["debit"].(string))
		require.NoError(t, err)
		c, err := types.NewMoneyFromString(b["credit"].(string))
		require.NoError(t, err)
		debit, credit = debit.Add(d), credit.Add(c)
	}
	assert.True(t, debit.Equal(credit), "%s != %s", debit, credit)
}

func TestNumberingEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodGet, "/api/v1/numbering/resolve?branch_id=b1&kind=sale", nil)
	require.Equal(t, http.StatusOK, resp.Code, string(resp.RawBody))
	res := resp.Body["resolution"].(map[string]any)
	assert.Equal(t, "FE", res["prefix"])
	assert.Equal(t, true, resp.Body["limits"].(map[string]any)["ok"])

	resp = api.do(t, http.MethodPost, "/api/v1/numbering/resolutions", map[string]any{
		"branch_id":   "b2",
		"kind":        "sale",
		"prefix":      "FB",
		"range_from":  10,
		"range_to":    5,
		"valid_from":  now.AddDate(0, -1, 0),
		"valid_until": now.AddDate(1, 0, 0),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.do(t, http.MethodPost, "/api/v1/numbering/resolutions", map[string]any{
		"branch_id":   "b2",
		"kind":        "sale",
		"prefix":      "FB",
		"range_from":  1,
		"range_to":    50,
		"valid_from":  now.AddDate(0, -1, 0),
		"valid_until": now.AddDate(1, 0, 0),
	})
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.RawBody))
	id := resp.Body["id"].(string)

	resp = api.do(t, http.MethodGet, "/api/v1/numbering/resolutions/"+id+"/limits", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	warnings := resp.Body["warnings"].([]any)
	require.NotEmpty(t, warnings)
	assert.Equal(t, "near_exhaustion", warnings[0].(map[string]any)["code"])

	resp = api.do(t, http.MethodPost, "/api/v1/numbering/resolutions/"+id+"/deactivate", nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.do(t, http.MethodGet, "/api/v1/numbering/resolve?branch_id=b2&kind=sale", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStockReceiptAndTransfer(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/api/v1/stock/receipts", map[string]any{
		"item_id":     "laptop",
		"location_id": "b1",
		"quantity":    10,
		"unit_cost":   "400000",
	})
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.RawBody))
	assert.Equal(t, "receipt", resp.Body["recorder_type"])

	resp = api.do(t, http.MethodPost, "/api/v1/stock/transfers", map[string]any{
		"item_id":          "laptop",
		"from_location_id": "b1",
		"to_location_id":   "b2",
		"quantity":         4,
	})
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.RawBody))

	resp = api.do(t, http.MethodGet, "/api/v1/stock/laptop/b2", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 4, resp.Body["quantity"])
	avg, err := types.NewMoneyFromString(resp.Body["avg_cost"].(string))
	require.NoError(t, err)
	assert.True(t, avg.Equal(money("350000")), avg.String())

	resp = api.do(t, http.MethodGet, "/api/v1/stock/movements?item_id=laptop&location_id=b1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 3, resp.Body["count"])
}

func TestQuote(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/api/v1/pricing/quote", map[string]any{
		"lines": []map[string]any{
			{"item_id": "laptop", "quantity": 1, "discount_pct": "10"},
			{"item_id": "setup", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code, string(resp.RawBody))
	totals := resp.Body["totals"].(map[string]any)
	total, err := types.NewMoneyFromString(totals["total"].(string))
	require.NoError(t, err)
	// 450000 * 1.19 + 100000
	assert.True(t, total.Equal(money("635500")), total.String())

	resp = api.do(t, http.MethodGet, "/api/v1/stock/laptop/b1", nil)
	assert.EqualValues(t, 10, resp.Body["quantity"])
}

func TestIdempotentSale(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := cache.NewIdempotencyStore(client, time.Hour)
	require.NoError(t, err)
	api := newTestAPI(t, store)

	first := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(1), middleware.HeaderIdempotencyKey, "pos-1-0001")
	require.Equal(t, http.StatusCreated, first.Code, string(first.RawBody))
	assert.Equal(t, "FE-001", saleID(t, first))

	second := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(1), middleware.HeaderIdempotencyKey, "pos-1-0001")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "FE-001", saleID(t, second))
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))

	mismatch := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(2), middleware.HeaderIdempotencyKey, "pos-1-0001")
	assert.Equal(t, http.StatusConflict, mismatch.Code)

	third := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(1), middleware.HeaderIdempotencyKey, "pos-1-0002")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "FE-002", saleID(t, third))

	rec, err := api.stock.GetRecord(context.Background(), "laptop", "b1")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(8), rec.Quantity)
}

func TestIdempotentFailureReplays(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := cache.NewIdempotencyStore(client, time.Hour)
	require.NoError(t, err)
	api := newTestAPI(t, store)

	first := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(20), middleware.HeaderIdempotencyKey, "k")
	require.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := api.do(t, http.MethodPost, "/api/v1/sales", saleBody(20), middleware.HeaderIdempotencyKey, "k")
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", second.Body["code"])
}
