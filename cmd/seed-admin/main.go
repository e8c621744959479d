// seed-admin creates or updates the admin console user (username: factoryAdmin)
// and prints a session token for calling the API during development.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... REDIS_ADDRESS=... go run ./cmd/seed-admin
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/factory_backend/config"
	"github.com/mmdatafocus/factory_backend/models"
	"github.com/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "factoryAdmin"
	companyName   = "Dev Factory"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	models.MigrateTable()

	var company models.Company
	err := db.WithContext(ctx).Model(&models.Company{}).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		company = models.Company{
			ID:               uuid.NewString(),
			Name:             companyName,
			BaseCurrencyCode: "USD",
			IsActive:         utils.NewTrue(),
		}
		utils.ErrorPanic(db.WithContext(ctx).Create(&company).Error)
		fmt.Printf("Created company %q (id=%s)\n", company.Name, company.ID)
	} else {
		utils.ErrorPanic(err)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u := models.User{
			Username:  adminUsername,
			Role:      models.UserRoleAdmin,
			CompanyId: company.ID,
		}
		utils.ErrorPanic(db.WithContext(ctx).Create(&u).Error)
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
	} else if err != nil {
		utils.ErrorPanic(err)
	} else {
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
			"company_id": company.ID,
			"role":       models.UserRoleAdmin,
		}).Error; err != nil {
			utils.ErrorPanic(err)
		}
		_ = config.RemoveRedisKey("User:" + adminUsername)
		fmt.Printf("Updated admin user: username=%q\n", adminUsername)
	}

	token := uuid.NewString()
	utils.ErrorPanic(config.GetRedisDB().Set(context.Background(), "Token:"+token, adminUsername, 24*time.Hour).Err())
	fmt.Printf("Session token (24h): %s\n", token)
}
