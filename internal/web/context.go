package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so comparison
// logs name the requester. The IP was resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, middleware.ClientIP(r), r.UserAgent())
}
