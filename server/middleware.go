package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-contacts/auth"
)

const userLocalsKey = "user"

// requireAuth resolves the bearer token to a user before the handler runs.
// Missing header, bad signature, expiry, and a token that no longer matches
// the stored copy all collapse to 401.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	raw := bearerToken(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return s.respondError(c, auth.ErrNotAuthorized)
	}

	user, err := s.accounts.Authenticate(c.UserContext(), raw)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryInternal {
			return s.respondError(c, err)
		}
		return s.respondError(c, auth.ErrNotAuthorized)
	}

	c.Locals(userLocalsKey, user)
	return c.Next()
}

// currentUser returns the user resolved by requireAuth.
func currentUser(c *fiber.Ctx) (*auth.User, bool) {
	user, ok := c.Locals(userLocalsKey).(*auth.User)
	return user, ok && user != nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
