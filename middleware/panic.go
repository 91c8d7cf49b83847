package middleware

import (
	"net/http"
	"runtime"

	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/response"
)

func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				const size = 1 << 16
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				logger.Errorf(r.Context(), "panic: %v\n%s", err, buf)

				response.SomethingWrong().Send(r.Context(), w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
