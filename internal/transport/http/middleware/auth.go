package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ordinaut/ordinaut/internal/authz"
)

const errUnauthorized = "Unauthorized"

// actorContextKey is the gin context key Auth stores the resolved
// authz.Actor under; handlers read it via ActorFromContext.
const actorContextKey = "actor"

// Auth validates a Bearer JWT, extracts the agent id (sub) and scopes
// claim, and stores the resulting authz.Actor in the gin context.
func Auth(jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		rawToken := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		agentID, ok := claims["sub"].(string)
		if !ok || agentID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		var scopes []string
		if raw, ok := claims["scopes"].([]any); ok {
			for _, s := range raw {
				if str, ok := s.(string); ok {
					scopes = append(scopes, str)
				}
			}
		}

		c.Set(actorContextKey, authz.Actor{AgentID: agentID, Scopes: scopes})
		c.Next()
	}
}

// ActorFromContext returns the actor Auth populated, or the zero Actor if
// the route has no Auth middleware (should not happen for any mutating
// route, but handlers fail the scope check safely either way).
func ActorFromContext(c *gin.Context) authz.Actor {
	actor, _ := c.Get(actorContextKey)
	a, _ := actor.(authz.Actor)
	return a
}
