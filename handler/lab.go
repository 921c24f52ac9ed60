package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"lab_manager/constants"
	"lab_manager/database"
	"lab_manager/helper"
	"lab_manager/model"
	"lab_manager/utils"
)

func GetLabs(c *fiber.Ctx) error {
	input, ok := c.Locals("inputFilterLab").(model.FilterLabInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}

	query := database.DB.Model(&model.Lab{})
	if !input.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	var labs []model.Lab
	if err := utils.ApplyPagination(query.Order("name"), input.Limit, input.Page).Find(&labs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, model.ResponseCustom{
		Rows:       labs,
		Limit:      input.Limit,
		Page:       input.Page,
		TotalCount: total,
	})
}

func GetLabBySlug(c *fiber.Ctx) error {
	var lab model.Lab
	if err := database.DB.Preload("Equipment").Where("slug = ?", c.Params("slug")).First(&lab).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, constants.LAB_NOT_FOUND, err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, lab)
}

func CreateLab(c *fiber.Ctx) error {
	input, ok := c.Locals("inputCreateLab").(model.CreateLabInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}

	lab := model.Lab{Name: input.Name, Location: input.Location, IsActive: true}
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		lab.Slug = helper.GenerateUniqueLabSlug(tx, input.Name)
		return tx.Create(&lab).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	logrus.WithFields(logrus.Fields{"lab_id": lab.ID, "slug": lab.Slug}).Info("lab created")
	return utils.SuccessResponse(c, fiber.StatusCreated, lab)
}

// ActiveLab toggles whether a lab accepts new bookings. Existing bookings are left alone.
func ActiveLab(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	input, ok := c.Locals("inputActiveLab").(model.ActiveLabInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}

	var lab model.Lab
	if err := database.DB.First(&lab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, constants.LAB_NOT_FOUND, err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	lab.IsActive = *input.IsActive
	if err := database.DB.Model(&lab).Update("is_active", lab.IsActive).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, lab)
}

func CreateEquipment(c *fiber.Ctx) error {
	input, ok := c.Locals("inputCreateEquipment").(model.CreateEquipmentInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}

	var lab model.Lab
	if err := database.DB.First(&lab, input.LabId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, constants.LAB_NOT_FOUND, err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	eq := model.Equipment{
		Name:         input.Name,
		SerialNumber: input.SerialNumber,
		LabId:        lab.ID,
		IsActive:     true,
		Status:       model.EquipmentAvailable,
	}
	if err := database.DB.Create(&eq).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, eq)
}

// UpdateEquipmentStatus sets the operational status. Bookings already made for the equipment
// are not touched; only new bookings see the change.
func UpdateEquipmentStatus(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	input, ok := c.Locals("inputUpdateEquipmentStatus").(model.UpdateEquipmentStatusInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}

	var eq model.Equipment
	if err := database.DB.First(&eq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, constants.EQUIPMENT_NOT_FOUND, err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	updates := map[string]any{"status": input.Status}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := database.DB.Model(&eq).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	logrus.WithFields(logrus.Fields{"equipment_id": eq.ID, "status": input.Status}).Info("equipment status updated")
	return utils.SuccessResponse(c, fiber.StatusOK, eq)
}
