package validate

import (
	"github.com/gofiber/fiber/v2"

	"lab_manager/constants"
	"lab_manager/model"
	"lab_manager/utils"
)

func FilterLab() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input model.FilterLabInput
		if err := bindQuery(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputFilterLab", input)
		return c.Next()
	}
}

func CreateLab() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input model.CreateLabInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputCreateLab", input)
		return c.Next()
	}
}

func ActiveLab(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseId(c, key)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.DATA_INPUT_IS_NOT_NUMBER, err)
		}
		var input model.ActiveLabInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputId", id)
		c.Locals("inputActiveLab", input)
		return c.Next()
	}
}

func CreateEquipment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input model.CreateEquipmentInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputCreateEquipment", input)
		return c.Next()
	}
}

func UpdateEquipmentStatus(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseId(c, key)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.DATA_INPUT_IS_NOT_NUMBER, err)
		}
		var input model.UpdateEquipmentStatusInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputId", id)
		c.Locals("inputUpdateEquipmentStatus", input)
		return c.Next()
	}
}
