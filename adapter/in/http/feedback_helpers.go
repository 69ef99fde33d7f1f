package http

import (
	"strconv"

	"feedback_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// parseID reads a positive int64 route parameter.
func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput(name, "must be a positive integer")
	}
	return id, nil
}

// queryInt reads the first present integer query parameter among names.
func queryInt(c *fiber.Ctx, def int, names ...string) (int, error) {
	for _, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, apperr.InvalidInput(name, "must be an integer")
		}
		return v, nil
	}
	return def, nil
}
