// Package recoverer turns handler panics into a 500 JSON envelope.
package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/short-link/pkg/middleware"
	"github.com/vadimbarashkov/short-link/pkg/response"
)

var panicResponse = response.Failure(response.KindInternal, "internal server error")

func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				// Let net/http abort the connection quietly.
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.ErrorContext(r.Context(),
					"panic recovered",
					slog.Group(op,
						slog.Any("panic", rvr),
						slog.String("stack", string(debug.Stack())),
					),
				)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, panicResponse)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
