package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "auctionhouse/internal/log"
	"auctionhouse/internal/validate"
)

const (
	headerPlayerID   = "X-Player-ID"
	headerPlayerName = "X-Player-Name"
	headerAdminKey   = "X-Admin-Key"

	localPlayer = "player"
	localAdmin  = "admin"
)

// Player is the caller identity set by the command layer.
type Player struct {
	ID   string
	Name string
}

// RequirePlayer enforces a valid player identity header.
func RequirePlayer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validate.ID(c.Get(headerPlayerID))
		if !ok {
			applog.Security(c, "access.denied.player", map[string]any{"player_id": c.Get(headerPlayerID)})
			return reject(c, fiber.StatusUnauthorized, codeForbidden, "player identity required")
		}
		name, ok := validate.Name(c.Get(headerPlayerName))
		if !ok {
			name = id
		}
		c.Locals(localPlayer, Player{ID: id, Name: name})
		return c.Next()
	}
}

// DetectAdmin marks the request as admin when X-Admin-Key matches the
// configured bcrypt hash. A wrong key is refused outright.
func DetectAdmin(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(headerAdminKey)
		if key == "" {
			return c.Next()
		}
		if !adminKeyValid(keyHash, key) {
			applog.Security(c, "access.denied.admin", nil)
			return reject(c, fiber.StatusForbidden, codeForbidden, "access denied")
		}
		c.Locals(localAdmin, true)
		return c.Next()
	}
}

// RequireAdmin enforces a valid admin key.
func RequireAdmin(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !adminKeyValid(keyHash, c.Get(headerAdminKey)) {
			applog.Security(c, "access.denied.admin", nil)
			return reject(c, fiber.StatusForbidden, codeForbidden, "access denied")
		}
		c.Locals(localAdmin, true)
		return c.Next()
	}
}

func adminKeyValid(keyHash, key string) bool {
	if keyHash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) == nil
}

func player(c *fiber.Ctx) Player {
	p, _ := c.Locals(localPlayer).(Player)
	return p
}

func isAdmin(c *fiber.Ctx) bool {
	ok, _ := c.Locals(localAdmin).(bool)
	return ok
}
