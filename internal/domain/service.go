package domain

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// ServiceType distinguishes in-person training courses from online/document
// services. It is resolved once when the catalog entry is loaded; downstream
// code branches on the typed constant, never on raw request strings.
type ServiceType string

const (
	ServiceTraining ServiceType = "training"
	ServiceOnline   ServiceType = "online"
)

func ParseServiceType(s string) (ServiceType, bool) {
	switch ServiceType(s) {
	case ServiceTraining, ServiceOnline:
		return ServiceType(s), true
	}
	return "", false
}

// Service is a catalog entry. Admin tooling owns writes; this system only
// reads it to price an order.
type Service struct {
	ID       string      `gorm:"primaryKey"`
	Title    string      `gorm:"not null"`
	Category string      `gorm:"index"`
	Type     ServiceType `gorm:"index;type:varchar(20)"`

	// Pricing in major currency units (rupees), matching the admin documents.
	// Conversion to minor units happens exactly once, in the order service.
	BasePrice       float64
	Currency        string `gorm:"type:varchar(3);default:INR"`
	DiscountPercent float64
	DiscountExpiry  *time.Time
	TaxComponents   datatypes.JSON // [{"name":"GST","percent":18}, ...]

	Active    bool `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TaxComponent struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// FinalPrice derives the chargeable major-unit amount: base price minus a
// still-valid discount, plus tax components. Rounded to the paisa.
func (s *Service) FinalPrice(taxes []TaxComponent, now time.Time) float64 {
	price := s.BasePrice
	if s.DiscountPercent > 0 && (s.DiscountExpiry == nil || s.DiscountExpiry.After(now)) {
		price -= price * s.DiscountPercent / 100
	}
	for _, t := range taxes {
		price += s.BasePrice * t.Percent / 100
	}
	return math.Round(price*100) / 100
}
