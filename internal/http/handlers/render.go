package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
)

const genericFailure = "Something went wrong. Please try again."

// Stable error codes returned in the "code" field.
const (
	codeValidation = "validation"
	codeFunds      = "funds"
	codeConflict   = "conflict"
	codeNotFound   = "not_found"
	codeForbidden  = "forbidden"
	codeInternal   = "internal"
)

func render(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(data)
}

func reject(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

// badInput logs a validation failure and answers 400.
func badInput(c *fiber.Ctx, field string, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["field"] = field
	applog.Security(c, "validation.fail", fields)
	return reject(c, fiber.StatusBadRequest, codeValidation, "invalid "+field)
}

// fail maps an engine error onto an HTTP status. Messages of caller errors are
// returned as-is; anything else gets a generic message.
func fail(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	switch {
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrEntryNotFound):
		applog.Info(c, action+".not_found", fields)
		return reject(c, fiber.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		applog.Info(c, action+".rejected", withErr(fields, err))
		return reject(c, fiber.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, domain.ErrFunds):
		applog.Info(c, action+".rejected", withErr(fields, err))
		return reject(c, fiber.StatusPaymentRequired, codeFunds, err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		applog.Info(c, action+".conflict", withErr(fields, err))
		return reject(c, fiber.StatusConflict, codeConflict, err.Error())
	default:
		applog.Error(c, action+".fail", err, fields)
		return reject(c, fiber.StatusInternalServerError, codeInternal, genericFailure)
	}
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["reason"] = err.Error()
	return out
}

// ErrorHandler is the fiber error handler: router errors keep their status,
// everything else becomes a friendly 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return reject(c, fe.Code, codeValidation, fe.Message)
	}
	applog.Error(c, "server.error", err, nil)
	return reject(c, fiber.StatusInternalServerError, codeInternal, genericFailure)
}
