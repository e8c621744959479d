package zentrysync

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/factory_backend/config"
	"github.com/mmdatafocus/factory_backend/models"
	"github.com/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if conn == nil {
			c.JSON(http.StatusOK, StatusResponse{
				Connection: ConnectionResponse{
					Status: models.IntegrationStatusDisconnected,
				},
				Modules: DefaultModules(),
			})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			Connection: ConnectionResponse{
				Status:    conn.Status,
				TenantRef: conn.TenantRef,
				OrgName:   conn.OrgName,
			},
			LastSyncAt:        formatTime(conn.LastSyncAt),
			LastSuccessSyncAt: formatTime(conn.LastSuccessSyncAt),
			Modules:           DecodeModules(conn.SettingsJSON),
		})
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if strings.TrimSpace(req.TenantRef) == "" || strings.TrimSpace(req.RefreshToken) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenantRef and refreshToken are required"})
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		orgName := strings.TrimSpace(req.OrgName)
		if orgName == "" {
			orgName = req.TenantRef
		}

		if conn == nil {
			conn = &models.IntegrationConnection{
				CompanyId:    companyId,
				Provider:     models.IntegrationProviderZentry,
				Status:       models.IntegrationStatusConnected,
				AuthType:     "oauth2",
				AccessToken:  req.AccessToken,
				RefreshToken: req.RefreshToken,
				TenantRef:    req.TenantRef,
				OrgName:      orgName,
				SettingsJSON: EncodeModules(DefaultModules()),
				UpdatedAt:    now,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			update := map[string]interface{}{
				"status":        models.IntegrationStatusConnected,
				"auth_type":     "oauth2",
				"access_token":  req.AccessToken,
				"refresh_token": req.RefreshToken,
				"tenant_ref":    req.TenantRef,
				"org_name":      orgName,
				"updated_at":    now,
			}
			if len(conn.SettingsJSON) == 0 {
				update["settings_json"] = EncodeModules(DefaultModules())
			}
			if err := db.Model(conn).Updates(update).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		// Mappings and run history survive a disconnect so a later reconnect
		// resumes instead of re-importing everything.
		if err := db.Model(conn).Updates(map[string]interface{}{
			"status":        models.IntegrationStatusDisconnected,
			"access_token":  "",
			"refresh_token": "",
			"updated_at":    time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req UpdateSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)
		conn, err := getConnection(db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		modules := EncodeModules(req.Modules)
		if conn == nil {
			conn = &models.IntegrationConnection{
				CompanyId:    companyId,
				Provider:     models.IntegrationProviderZentry,
				Status:       models.IntegrationStatusDisconnected,
				SettingsJSON: modules,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(conn).Updates(map[string]interface{}{
				"settings_json": modules,
				"updated_at":    time.Now(),
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil || conn.Status != models.IntegrationStatusConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "zentry is not connected"})
			return
		}

		modules := req.Modules
		if isEmptyModules(modules) {
			modules = DecodeModules(conn.SettingsJSON)
		}

		run := models.IntegrationSyncRun{
			CompanyId:    companyId,
			ConnectionId: conn.ID,
			Provider:     models.IntegrationProviderZentry,
			Status:       models.SyncRunStatusQueued,
			TriggeredBy:  models.SyncTriggeredManual,
			ModulesJSON:  EncodeModules(modules),
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(c.Request.Context(), run.ID, companyId, conn.ID)

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		var runs []models.IntegrationSyncRun
		if err := db.Where("company_id = ? AND provider = ?", companyId, models.IntegrationProviderZentry).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		run, err := getRun(db, companyId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.IntegrationSyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(*run),
			Errors:          mapErrors(errs),
		}
		c.JSON(http.StatusOK, resp)
	}
}

func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		run, err := getRun(db, companyId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.IntegrationSyncRun{
			CompanyId:    companyId,
			ConnectionId: run.ConnectionId,
			Provider:     run.Provider,
			Status:       models.SyncRunStatusQueued,
			TriggeredBy:  models.SyncTriggeredRetry,
			ModulesJSON:  run.ModulesJSON,
			ParentRunId:  &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(c.Request.Context(), newRun.ID, companyId, run.ConnectionId)

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func resolveCompanyID(c *gin.Context) (string, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return "", errors.New("unauthorized")
	}

	companyId := strings.TrimSpace(c.Query("company_id"))
	if companyId != "" {
		if err := authorizeInternalCompany(c.Request.Context(), companyId); err != nil {
			return "", err
		}
		return companyId, nil
	}

	user, err := lookupUser(c.Request.Context(), username)
	if err != nil {
		return "", err
	}
	companyId = strings.TrimSpace(user.CompanyId)
	if companyId == "" {
		return "", errors.New("company_id is required")
	}
	return companyId, nil
}

func authorizeInternalCompany(ctx context.Context, companyId string) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("unauthorized")
	}
	if companyId == "" {
		return errors.New("company_id is required")
	}

	user, err := lookupUser(ctx, username)
	if err != nil {
		return err
	}
	if user.Role == models.UserRoleAdmin {
		return nil
	}
	if user.CompanyId != companyId {
		return errors.New("unauthorized")
	}
	return nil
}

func lookupUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err == nil && exists {
		return &user, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Take(&user).Error; err != nil {
		return nil, errors.New("unauthorized")
	}
	_ = config.SetRedisObject("User:"+username, &user, 10*time.Minute)
	return &user, nil
}

func getRun(db *gorm.DB, companyId string, id int) (*models.IntegrationSyncRun, error) {
	var run models.IntegrationSyncRun
	if err := db.Where("id = ? AND company_id = ?", id, companyId).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func getConnection(db *gorm.DB, companyId string) (*models.IntegrationConnection, error) {
	var conn models.IntegrationConnection
	err := db.Where("company_id = ? AND provider = ?", companyId, models.IntegrationProviderZentry).Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.IntegrationSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Status:        run.Status,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsSynced: run.RecordsSynced,
		SkipCount:     run.SkipCount,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func mapErrors(errorsList []models.IntegrationSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			EntityType: errItem.EntityType,
			LocalId:    errItem.LocalId,
			ExternalId: errItem.ExternalId,
			Message:    errItem.Message,
			Retryable:  errItem.Retryable,
		})
	}
	return out
}

func isEmptyModules(mod SyncModules) bool {
	return mod == SyncModules{}
}
