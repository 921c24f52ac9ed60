package model

import "time"

type BookingType string

const (
	BookingTypeLab       BookingType = "lab"
	BookingTypeEquipment BookingType = "equipment"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type Booking struct {
	DTO
	PublicCode  string        `gorm:"size:16;uniqueIndex" json:"publicCode"`
	UserId      uint          `gorm:"not null;index;uniqueIndex:idx_booking_idempotency,priority:1" json:"userId"`
	BookingType BookingType   `gorm:"size:16;not null;index:idx_booking_scope" json:"bookingType"`
	LabId       *uint         `gorm:"index:idx_booking_scope" json:"labId"`
	EquipmentId *uint         `gorm:"index" json:"equipmentId"`
	StartTime   time.Time     `gorm:"type:timestamptz;not null;index" json:"startTime"`
	EndTime     time.Time     `gorm:"type:timestamptz;not null;index" json:"endTime"`
	Status      BookingStatus `gorm:"size:16;not null;index" json:"status"`
	Purpose     string        `gorm:"size:500" json:"purpose"`
	// Client-supplied Idempotency-Key; NULL rows never collide.
	IdempotencyKey *string `gorm:"size:128;uniqueIndex:idx_booking_idempotency,priority:2" json:"-"`
}

type CreateBookingInput struct {
	BookingType string    `json:"bookingType" validate:"required,oneof=lab equipment"`
	LabId       *uint     `json:"labId" validate:"omitempty,gt=0"`
	EquipmentId *uint     `json:"equipmentId" validate:"omitempty,gt=0"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	Purpose     string    `json:"purpose" validate:"omitempty,max=500"`
}

type UpdateBookingStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
}

type RescheduleBookingInput struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Purpose   *string   `json:"purpose" validate:"omitempty,max=500"`
}

type FilterBookingInput struct {
	Pagination
	UserId      *uint  `query:"userId" validate:"omitempty,gt=0"`
	LabId       *uint  `query:"labId" validate:"omitempty,gt=0"`
	EquipmentId *uint  `query:"equipmentId" validate:"omitempty,gt=0"`
	Status      string `query:"status" validate:"omitempty,oneof=pending confirmed cancelled completed"`
	From        string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To          string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type BookingResponse struct {
	ID          uint          `json:"id"`
	PublicCode  string        `json:"publicCode"`
	UserId      uint          `json:"userId"`
	BookingType BookingType   `json:"bookingType"`
	LabId       *uint         `json:"labId"`
	EquipmentId *uint         `json:"equipmentId"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Status      BookingStatus `json:"status"`
	Purpose     string        `json:"purpose"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
