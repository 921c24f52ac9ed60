package validate

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lab_manager/constants"
	"lab_manager/utils"
)

var validate = validator.New()

func GetById(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseId(c, key)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.DATA_INPUT_IS_NOT_NUMBER, err)
		}

		c.Locals("inputId", id)
		return c.Next()
	}
}

func parseId(c *fiber.Ctx, key string) (uint, error) {
	value, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || value == 0 {
		return 0, errors.New("params invalid")
	}
	return uint(value), nil
}

// bindBody parses the JSON body into input and runs its validate tags.
func bindBody(c *fiber.Ctx, input any) error {
	if err := c.BodyParser(input); err != nil {
		return err
	}
	return validate.Struct(input)
}

func bindQuery(c *fiber.Ctx, input any) error {
	if err := c.QueryParser(input); err != nil {
		return err
	}
	return validate.Struct(input)
}
