package model

type Lab struct {
	DTO
	Name      string      `gorm:"not null" json:"name"`
	Slug      string      `gorm:"size:120;uniqueIndex" json:"slug"`
	Location  string      `json:"location"`
	IsActive  bool        `gorm:"not null;default:true" json:"isActive"`
	Equipment []Equipment `gorm:"foreignKey:LabId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"equipment,omitempty"`
}

type CreateLabInput struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Location string `json:"location" validate:"omitempty,max=255"`
}

type ActiveLabInput struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type FilterLabInput struct {
	Pagination
	IncludeInactive bool `query:"includeInactive"`
}
