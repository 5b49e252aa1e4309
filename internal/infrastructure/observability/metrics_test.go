package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/domain/fiscal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedValidator struct {
	outcome fiscal.Outcome
	err     error
}

func (v fixedValidator) Validate(_ context.Context, req fiscal.Request) (fiscal.Result, error) {
	if v.err != nil {
		return fiscal.Result{}, v.err
	}
	return fiscal.Result{DocumentID: req.DocumentID, Kind: req.Kind, Outcome: v.outcome}, nil
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := NewMetrics()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/sales/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sales/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/sales/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("unmatched", "GET", "404")))
}

func TestInstrumentValidator(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	req := fiscal.Request{DocumentID: "doc-1", Kind: fiscal.KindSale}

	approved := m.InstrumentValidator(fixedValidator{outcome: fiscal.OutcomeApproved})
	_, err := approved.Validate(ctx, req)
	require.NoError(t, err)

	failing := m.InstrumentValidator(fixedValidator{err: errors.New("timeout")})
	_, err = failing.Validate(ctx, req)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("sale", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("sale", "error")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.validations.WithLabelValues("return", "rejected").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `salesledger_validations_total{kind="return",outcome="rejected"} 1`))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	v := fixedValidator{outcome: fiscal.OutcomeApproved}
	assert.Equal(t, fiscal.Validator(v), m.InstrumentValidator(v))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
