package model

type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentInUse       EquipmentStatus = "in_use"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentRetired     EquipmentStatus = "retired"
)

type Equipment struct {
	DTO
	Name         string          `gorm:"not null" json:"name"`
	SerialNumber string          `gorm:"size:64;uniqueIndex" json:"serialNumber"`
	LabId        uint            `gorm:"not null;index" json:"labId"`
	IsActive     bool            `gorm:"not null;default:true" json:"isActive"`
	Status       EquipmentStatus `gorm:"size:20;not null;default:available" json:"status"`
}

type CreateEquipmentInput struct {
	Name         string `json:"name" validate:"required,min=2,max=120"`
	SerialNumber string `json:"serialNumber" validate:"required,max=64"`
	LabId        uint   `json:"labId" validate:"required,gt=0"`
}

type UpdateEquipmentStatusInput struct {
	Status   string `json:"status" validate:"required,oneof=available in_use maintenance retired"`
	IsActive *bool  `json:"isActive"`
}
