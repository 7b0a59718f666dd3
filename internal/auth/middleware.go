package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"callplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// HeaderInternalToken carries the pre-shared token sent by telephony nodes.
	HeaderInternalToken = "X-Internal-API-Token"
)

// RequireInternalCaller admits a request carrying either the pre-shared token
// in X-Internal-API-Token or, when m is non-nil, a valid Bearer service token.
// The shared token is compared in constant time. An empty sharedToken never
// matches.
func RequireInternalCaller(sharedToken string, m *Manager) gin.HandlerFunc {
	expected := []byte(sharedToken)
	return func(c *gin.Context) {
		if got := c.GetHeader(HeaderInternalToken); got != "" {
			if len(expected) > 0 && subtle.ConstantTimeCompare([]byte(got), expected) == 1 {
				admit(c, Caller{Kind: CallerSharedToken})
				return
			}
			deny(c, "invalid internal token")
			return
		}

		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if m == nil || !strings.HasPrefix(raw, bearerPrefix) {
			deny(c, "missing credentials")
			return
		}
		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), time.Now())
		if err != nil {
			deny(c, "invalid service token")
			return
		}
		admit(c, Caller{Kind: CallerServiceToken, NodeID: claims.NodeID()})
	}
}

func admit(c *gin.Context, caller Caller) {
	ctx := WithCaller(c.Request.Context(), caller)
	if caller.NodeID != "" {
		ctx = logger.With(ctx, logger.From(ctx).With("node_id", caller.NodeID))
	}
	c.Request = c.Request.WithContext(ctx)

	// Also store on gin context for handler convenience.
	c.Set("caller_kind", string(caller.Kind))
	c.Set("node_id", caller.NodeID)

	c.Next()
}

func deny(c *gin.Context, reason string) {
	logger.From(c.Request.Context()).Warn("internal caller rejected", "reason", reason, "client_ip", c.ClientIP())
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "unauthorized"})
}
