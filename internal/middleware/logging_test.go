package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	t.Run("adds request ID to response headers", func(t *testing.T) {
		handler := Logger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		requestID := rec.Header().Get("X-Request-ID")
		assert.Len(t, requestID, 36, "Request ID should be a valid UUID")
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		existingID := "custom-request-id-12345"

		handler := Logger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", existingID)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, existingID, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagates request ID through context", func(t *testing.T) {
		var fromContext string

		handler := Logger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = utils.GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.NotEmpty(t, fromContext)
		assert.Equal(t, fromContext, rec.Header().Get("X-Request-ID"))
	})

	t.Run("passes status codes through", func(t *testing.T) {
		statusCodes := []int{
			http.StatusOK,
			http.StatusCreated,
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusInternalServerError,
		}

		for _, code := range statusCodes {
			t.Run(http.StatusText(code), func(t *testing.T) {
				handler := Logger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(code)
				}))

				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				rec := httptest.NewRecorder()

				handler.ServeHTTP(rec, req)

				assert.Equal(t, code, rec.Code)
			})
		}
	})
}

func TestRecoverer(t *testing.T) {
	t.Run("recovers from panic and returns 500", func(t *testing.T) {
		handler := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("intentional panic for testing")
		}))

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()

		assert.NotPanics(t, func() {
			handler.ServeHTTP(rec, req)
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body utils.ErrorResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "Internal Server Error", body.Error)
		assert.NotContains(t, rec.Body.String(), "intentional panic")
	})

	t.Run("handles different panic types", func(t *testing.T) {
		testCases := []struct {
			name       string
			panicValue interface{}
		}{
			{"string panic", "error string"},
			{"error panic", assert.AnError},
			{"int panic", 42},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				handler := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					panic(tc.panicValue)
				}))

				req := httptest.NewRequest(http.MethodGet, "/panic", nil)
				rec := httptest.NewRecorder()

				assert.NotPanics(t, func() {
					handler.ServeHTTP(rec, req)
				})
				assert.Equal(t, http.StatusInternalServerError, rec.Code)
			})
		}
	})

	t.Run("rethrows ErrAbortHandler", func(t *testing.T) {
		handler := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		req := httptest.NewRequest(http.MethodGet, "/abort", nil)
		assert.Panics(t, func() {
			handler.ServeHTTP(httptest.NewRecorder(), req)
		})
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("Created"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	headers := rec.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", headers.Get("Strict-Transport-Security"))
	assert.Contains(t, headers.Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Created", rec.Body.String())
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows configured origins with credentials", func(t *testing.T) {
		handler := CORS([]string{"https://example.com"})(next)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("ignores unknown origins", func(t *testing.T) {
		handler := CORS([]string{"https://example.com"})(next)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://evil.example.org")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("answers PATCH preflight", func(t *testing.T) {
		handler := CORS([]string{"https://example.com"})(next)

		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	})
}

func TestMiddlewareChaining(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Success"))
	})

	chain := Recoverer()(Logger()(SecurityHeaders()(handler)))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Frame-Options"))
}

func BenchmarkLogger(b *testing.B) {
	handler := Logger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/bench", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
