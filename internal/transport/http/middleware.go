package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/identity"
)

const (
	HeaderInitData = "X-Telegram-Init-Data"
	HeaderDeviceID = "X-Device-ID"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	deviceContextKey   contextKey = "assignedDevice"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Hijack hands the connection to the websocket upgrader.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging logs one line per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Int("size", wrapped.size),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recovery turns handler panics into a JSON 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					writeError(w, &httpError{http.StatusInternalServerError, apiError{CodeInternalError, "Internal server error"}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Identity resolves the player behind a request: Telegram init data first, then the
// device id the client kept from an earlier response. A freshly generated device id is
// echoed in the X-Device-ID response header. Nothing here authenticates the caller.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initData := r.Header.Get(HeaderInitData)
		if initData == "" {
			initData = r.URL.Query().Get("initData")
		}
		deviceID := r.Header.Get(HeaderDeviceID)
		if deviceID == "" {
			deviceID = r.URL.Query().Get("deviceId")
		}

		storage := identity.NewRequestStorage(deviceID)
		resolver := identity.Chain{identity.NewHostResolver(initData), identity.NewLocalResolver(storage)}
		who, err := resolver.Resolve(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, who)
		if assigned, ok := storage.Assigned(); ok {
			w.Header().Set(HeaderDeviceID, assigned)
			ctx = context.WithValue(ctx, deviceContextKey, assigned)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity stored by the Identity middleware.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	who, ok := ctx.Value(identityContextKey).(domain.Identity)
	return who, ok
}

// upgradeHeader carries the assigned device id into a websocket handshake, which does
// not use the ResponseWriter's headers.
func upgradeHeader(ctx context.Context) http.Header {
	assigned, ok := ctx.Value(deviceContextKey).(string)
	if !ok {
		return nil
	}
	h := http.Header{}
	h.Set(HeaderDeviceID, assigned)
	return h
}
