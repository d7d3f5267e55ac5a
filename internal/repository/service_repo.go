package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
)

// ServiceRepo reads the service catalog. Writes belong to the admin tooling;
// Seed exists for dev setups and tests.
type ServiceRepo struct{ db *gorm.DB }

func NewServiceRepo(db *gorm.DB) *ServiceRepo {
	return &ServiceRepo{db: db}
}

func (r *ServiceRepo) Migrate() error {
	return r.db.AutoMigrate(&domain.Service{})
}

func (r *ServiceRepo) ByID(ctx context.Context, id string, typ domain.ServiceType) (*domain.Service, error) {
	var s domain.Service
	err := r.db.WithContext(ctx).First(&s, "id = ? AND type = ?", id, typ).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrServiceNotFound, typ, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ServiceRepo) Seed(ctx context.Context, services []domain.Service) error {
	if len(services) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&services).Error
}

// Taxes decodes the JSON tax components of a catalog entry.
func Taxes(s *domain.Service) ([]domain.TaxComponent, error) {
	if len(s.TaxComponents) == 0 {
		return nil, nil
	}
	var out []domain.TaxComponent
	if err := json.Unmarshal(s.TaxComponents, &out); err != nil {
		return nil, fmt.Errorf("decode tax components for %s: %w", s.ID, err)
	}
	return out, nil
}
