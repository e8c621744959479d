package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/factory_backend/config"
	"gorm.io/gorm"
)

type Company struct {
	ID                 string    `gorm:"primary_key;size:36" json:"id"`
	Name               string    `gorm:"size:255;not null" json:"name" binding:"required"`
	BaseCurrencyCode   string    `gorm:"size:3;not null;default:'USD'" json:"base_currency_code"`
	PrimaryWarehouseId int       `gorm:"default:0" json:"primary_warehouse_id"`
	IsActive           *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"index;size:36;not null" json:"company_id"`
	Username  string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Role      UserRole  `gorm:"type:enum('Admin','Owner','Staff');default:'Staff'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetCompanyById(ctx context.Context, companyId string) (*Company, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	var company Company
	key := "Company:" + companyId
	exists, err := config.GetRedisObject(key, &company)
	if err == nil && exists {
		return &company, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).Where("id = ?", companyId).Take(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("company not found")
		}
		return nil, err
	}
	_ = config.SetRedisObject(key, &company, 10*time.Minute)
	return &company, nil
}
