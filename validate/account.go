package validate

import (
	"github.com/gofiber/fiber/v2"

	"lab_manager/constants"
	"lab_manager/model"
	"lab_manager/utils"
)

func Login() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input model.LoginInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.MISSING_LOGIN_INPUT, err)
		}

		c.Locals("inputLogin", input)
		return c.Next()
	}
}
