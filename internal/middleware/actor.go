package middleware

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/pkg"
	"github.com/simp-lee/hrdesk/internal/session"
)

const actorIDHeader = "X-Actor-ID"

// TokenVerifier validates a bearer token and returns the session it attributes.
type TokenVerifier interface {
	Verify(token string) (domain.Session, error)
}

// Actor returns a gin middleware that resolves the operator behind an API
// request and stores it with session.WithContext.
//
// With a verifier, every request must carry a valid bearer token and is
// rejected with 401 otherwise. Without one, the X-Actor-ID header is taken
// as is and requests without it stay anonymous.
func Actor(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			if id := strings.TrimSpace(c.GetHeader(actorIDHeader)); id != "" {
				setSession(c, domain.Session{UserID: id})
			}
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			pkg.Error(c, domain.NewAppError(domain.CodeUnauthorized, "missing bearer token", nil))
			c.Abort()
			return
		}
		s, err := verifier.Verify(token)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rejected api token",
				slog.String("path", c.Request.URL.Path),
				slog.Any("error", err),
			)
			pkg.Error(c, err)
			c.Abort()
			return
		}
		setSession(c, s)
		c.Next()
	}
}

func setSession(c *gin.Context, s domain.Session) {
	c.Request = c.Request.WithContext(session.WithContext(c.Request.Context(), s))
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
