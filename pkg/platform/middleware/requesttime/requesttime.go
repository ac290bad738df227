// Package requesttime pins one "now" per HTTP request. Upload times and submission
// times recorded while serving the request read it through requestcontext.NowOr.
package requesttime

import (
	"net/http"
	"time"

	"visaintake/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
