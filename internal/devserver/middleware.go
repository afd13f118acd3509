package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
)

var rateLimitStore = memory.NewStore()

// RateLimiter bounds an endpoint with limiter notation like "120-M".
func RateLimiter(formattedRate string) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		panic(err)
	}
	lim := limiter.New(rateLimitStore, rate)
	return mgin.NewMiddleware(
		lim,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.PureJSON(http.StatusTooManyRequests, APIError{
				Code:    CodeRateLimited,
				Message: "rate limit exceeded",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			c.PureJSON(http.StatusInternalServerError, APIError{
				Code:    CodeInternalError,
				Message: err.Error(),
			})
		}),
	)
}

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"
)

// TokenAuth validates the bearer header on plain HTTP endpoints. The
// websocket upgrade carries its credential as a query parameter instead
// and is checked in its handler.
func TokenAuth(expected string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		headerValue := ctx.GetHeader(authHeader)
		if !strings.HasPrefix(headerValue, bearerPrefix) {
			AbortWithError(ctx, http.StatusUnauthorized, CodeAccessDenied, errors.New("authorization header format must be Bearer {token}"))
			return
		}

		token := strings.TrimPrefix(headerValue, bearerPrefix)
		if !tokenAccepted(expected, token) {
			AbortWithError(ctx, http.StatusUnauthorized, CodeAccessDenied, errors.New("invalid token"))
			return
		}

		ctx.Next()
	}
}

// tokenAccepted applies the dev-server credential policy: when a token
// is configured it must match exactly, otherwise any non-empty token
// passes.
func tokenAccepted(expected, got string) bool {
	if got == "" {
		return false
	}
	return expected == "" || expected == got
}
