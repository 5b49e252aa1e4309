package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/apperror"
	appctx "salesledger/internal/core/context"
	"salesledger/internal/infrastructure/cache"
	"salesledger/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(routes func(r *gin.Engine)) *gin.Engine {
	r := gin.New()
	r.Use(Trace(), Recovery(), Actor(), Logger(logger.NewNop()), ErrorHandler())
	routes(r)
	return r
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRecoveryRendersInternalError(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/boom", func(*gin.Context) { panic("nil map") })
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, w.Header().Get(HeaderRequestID), details["request_id"])
	assert.NotContains(t, w.Body.String(), "nil map")
}

func TestTraceHeaders(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
		})
	})

	t.Run("keeps client request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "pos-req-9")
		w, _ := serve(r, req)
		assert.Equal(t, "pos-req-9", w.Header().Get(HeaderRequestID))
		assert.Equal(t, "pos-req-9", w.Body.String())
		assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
	})

	t.Run("generates request id", func(t *testing.T) {
		w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Len(t, w.Header().Get(HeaderRequestID), 32)
		assert.Equal(t, w.Header().Get(HeaderRequestID), w.Body.String())
	})
}

func TestActorFromHeaders(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/who", func(c *gin.Context) {
			a := appctx.GetActor(c.Request.Context())
			if a == nil {
				c.String(http.StatusOK, "anonymous")
				return
			}
			c.String(http.StatusOK, a.ID+"/"+a.Channel)
		})
	})

	tests := []struct {
		name    string
		actor   string
		channel string
		want    string
	}{
		{"no header", "", "", "anonymous"},
		{"default channel", "cashier-3", "", "cashier-3/api"},
		{"explicit channel", " cashier-3 ", "pos", "cashier-3/pos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.actor != "" {
				req.Header.Set(HeaderActorID, tt.actor)
			}
			if tt.channel != "" {
				req.Header.Set(HeaderChannel, tt.channel)
			}
			w, _ := serve(r, req)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/stock", func(c *gin.Context) {
			_ = c.Error(apperror.NewInsufficientStock(1).WithDetail("shortages", []string{"laptop"}))
		})
		r.GET("/raw", func(c *gin.Context) {
			_ = c.Error(errors.New("connection reset"))
		})
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/stock", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, body["code"])

	w, body = serve(r, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "connection reset")
}

type recordingStore struct {
	acquired []string
}

func (s *recordingStore) AcquireKey(_ context.Context, key, _, _, requestHash string) (*cache.Replay, error) {
	s.acquired = append(s.acquired, key+":"+requestHash)
	return nil, nil
}

func (s *recordingStore) CompleteKey(context.Context, string, int, string, any) error { return nil }

func (s *recordingStore) FailKey(context.Context, string, int, string, any) error { return nil }

func TestIdempotencyRejectsUnreadableBody(t *testing.T) {
	store := &recordingStore{}
	reached := false
	r := newEngine(func(r *gin.Engine) {
		r.POST("/sales", Idempotency(store), func(c *gin.Context) {
			reached = true
			c.Status(http.StatusCreated)
		})
	})

	body := io.MultiReader(strings.NewReader(`{"branch_id":"b1","li`), iotest.ErrReader(io.ErrUnexpectedEOF))
	req := httptest.NewRequest(http.MethodPost, "/sales", body)
	req.Header.Set(HeaderIdempotencyKey, "pos-1-0001")

	w, resp := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, resp["code"])
	assert.False(t, reached)
	assert.Empty(t, store.acquired, "a truncated body must not be stored under the key")
}
