package database

import (
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lab_manager/config"
	"lab_manager/constants"
	"lab_manager/model"
)

type seedLab struct {
	lab       model.Lab
	equipment []model.Equipment
}

func SeedData(db *gorm.DB) {
	password := config.Default("SEED_ADMIN_PASSWORD", "123456lab")
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		logrus.WithError(err).Error("failed to hash seed password")
		return
	}
	users := []model.User{
		{Username: "admin", Password: string(bytes), FullName: "Administrator", Role: constants.ROLE_ADMIN, Active: true},
		{Username: "manager", Password: string(bytes), FullName: "Lab Manager", Role: constants.ROLE_LAB_MANAGER, Active: true},
	}
	for _, user := range users {
		if err := db.Where(model.User{Username: user.Username}).FirstOrCreate(&user).Error; err != nil {
			logrus.WithError(err).WithField("username", user.Username).Error("failed to seed user")
		}
	}

	labs := []seedLab{
		{
			lab: model.Lab{Name: "Molecular Biology Lab", Location: "Building A, Room 101", IsActive: true},
			equipment: []model.Equipment{
				{Name: "Centrifuge 5430R", SerialNumber: "MB-CF-001"},
				{Name: "PCR Thermal Cycler", SerialNumber: "MB-PCR-001"},
			},
		},
		{
			lab: model.Lab{Name: "Optics Lab", Location: "Building B, Room 204", IsActive: true},
			equipment: []model.Equipment{
				{Name: "Confocal Microscope", SerialNumber: "OP-CM-001"},
			},
		},
	}
	for _, s := range labs {
		lab := s.lab
		lab.Slug = slug.Make(lab.Name)
		if err := db.Where(model.Lab{Slug: lab.Slug}).FirstOrCreate(&lab).Error; err != nil {
			logrus.WithError(err).WithField("lab", lab.Name).Error("failed to seed lab")
			continue
		}
		for _, eq := range s.equipment {
			eq.LabId = lab.ID
			eq.IsActive = true
			eq.Status = model.EquipmentAvailable
			if err := db.Where(model.Equipment{SerialNumber: eq.SerialNumber}).FirstOrCreate(&eq).Error; err != nil {
				logrus.WithError(err).WithField("serial", eq.SerialNumber).Error("failed to seed equipment")
			}
		}
	}
}
