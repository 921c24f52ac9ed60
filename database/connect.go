package database

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lab_manager/config"
	"lab_manager/model"
)

var DB *gorm.DB

func ConnectDB() {
	var err error
	p := config.Default("DB_PORT", "5432")
	port, err := strconv.ParseUint(p, 10, 32)

	if err != nil {
		panic("failed to parse database port")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", config.Config("DB_HOST"), port, config.Config("DB_USER"), config.Config("DB_PASSWORD"), config.Config("DB_NAME"))
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})

	if err != nil {
		panic("failed to connect database")
	}

	logrus.Info("connection opened to database")
	if err := DB.AutoMigrate(
		&model.User{},
		&model.Lab{},
		&model.Equipment{},
		&model.Booking{},
	); err != nil {
		panic(fmt.Sprintf("failed to migrate database: %v", err))
	}
	logrus.Info("database migrated")

	SeedData(DB)
}
