package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

var errRateLimited = errors.New("rate limit exceeded")

// NewRateStore returns the in-process store used by RateLimit. Share one
// store between limiters with different prefixes.
func NewRateStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "crewimport",
		CleanUpInterval: time.Minute,
	})
}

// RateLimit allows perMinute requests per client address. The key is
// r.RemoteAddr, so ClientIP must run first. name separates buckets of
// different limiters sharing a store.
func RateLimit(store limiter.Store, name string, perMinute int) func(http.Handler) http.Handler {
	rate := limiter.Rate{Period: time.Minute, Limit: int64(perMinute)}
	mw := limiterhttp.NewMiddleware(
		limiter.New(store, rate),
		limiterhttp.WithKeyGetter(func(r *http.Request) string {
			return name + ":" + r.RemoteAddr
		}),
		limiterhttp.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit reached", "limiter", name, "ip", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, errRateLimited)
		}),
	)
	return mw.Handler
}
