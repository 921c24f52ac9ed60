package model

type User struct {
	DTO
	Username string `gorm:"uniqueIndex;not null" validate:"required,min=3,max=50" json:"username"`
	Password string `gorm:"not null" json:"-"`
	FullName string `json:"fullName"`
	Email    string `gorm:"size:255" json:"email"`
	Role     string `gorm:"size:20;not null" json:"role"`
	Active   bool   `gorm:"not null;default:true" json:"active"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
