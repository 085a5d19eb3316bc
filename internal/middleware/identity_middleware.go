package middleware

import (
	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/service"

	"github.com/gin-gonic/gin"
)

type IdentityMiddlewareConfig struct{}

// IdentityMiddleware resolves the browser session cookie set by the
// upstream login flow into an Identity on the request context. Requests
// without a live session simply carry no identity.
type IdentityMiddleware struct {
	config   IdentityMiddlewareConfig
	sessions *service.SessionService
}

func NewIdentityMiddleware(config IdentityMiddlewareConfig, sessions *service.SessionService) *IdentityMiddleware {
	return &IdentityMiddleware{
		config:   config,
		sessions: sessions,
	}
}

func (m *IdentityMiddleware) Init() error {
	return nil
}

func (m *IdentityMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(config.SessionCookieName)
		if err != nil || sessionID == "" {
			c.Next()
			return
		}

		session, err := m.sessions.Get(sessionID)
		if err != nil {
			c.Next()
			return
		}

		c.Set("identity", &config.Identity{
			UserID:         session.UserID,
			SessionID:      session.ID,
			ActiveTenantID: session.ActiveTenantID,
			IsLoggedIn:     true,
		})
		c.Next()
	}
}

// GetIdentity pulls the resolved identity off the gin context.
func GetIdentity(c *gin.Context) *config.Identity {
	value, exists := c.Get("identity")
	if !exists {
		return &config.Identity{}
	}

	identity, ok := value.(*config.Identity)
	if !ok {
		return &config.Identity{}
	}
	return identity
}
