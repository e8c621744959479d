package zentrysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/factory_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type itemSyncer struct {
	companyId string
	cfg       Config
}

func NewItemSyncer(companyId string, cfg Config) EntitySyncer {
	return &itemSyncer{companyId: companyId, cfg: cfg}
}

func (s *itemSyncer) EntityType() string { return EntityItem }
func (s *itemSyncer) PushOnly() bool     { return false }

func (s *itemSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	product, ok := local.Data.(*models.Product)
	if !ok {
		return false, "unexpected local data shape"
	}
	if product.IsActive != nil && !*product.IsActive {
		return false, "product is inactive"
	}
	if strings.TrimSpace(product.Sku) == "" {
		return false, "product has no SKU"
	}
	return true, ""
}

func (s *itemSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *itemSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	var rows []models.Product
	if err := db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", s.companyId, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*LocalEntity, len(rows))
	for i := range rows {
		row := rows[i]
		out[strconv.Itoa(row.ID)] = &LocalEntity{
			Id:        strconv.Itoa(row.ID),
			CompanyId: row.CompanyId,
			Status:    activeStatus(row.IsActive),
			UpdatedAt: row.UpdatedAt,
			Data:      &row,
		}
	}
	return out, nil
}

func (s *itemSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []int
	if err := db.WithContext(ctx).
		Model(&models.Product{}).
		Where("company_id = ? AND updated_at > ?", s.companyId, since).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out, nil
}

func (s *itemSyncer) FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error) {
	return fetchRemoteByID(ctx, api, itemSpec, remoteId)
}

func (s *itemSyncer) FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error) {
	return fetchRemoteByIDs(ctx, api, itemSpec, remoteIds)
}

func (s *itemSyncer) FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error) {
	return fetchRemotePage(ctx, api, itemSpec, "", since, page, s.cfg.PageSize)
}

func (s *itemSyncer) RemoteUpdatedAt(remote *RemoteEntity) *time.Time {
	return remoteUpdatedAtOf(remote.Data)
}

func (s *itemSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	product, ok := local.Data.(*models.Product)
	if !ok {
		return nil, fmt.Errorf("item %q: unexpected local data shape", local.Id)
	}

	body := map[string]any{
		"Code":        product.Sku,
		"Name":        product.Name,
		"Description": product.Description,
		"SalesDetails": map[string]any{
			"UnitPrice":   product.SalesPrice,
			"AccountCode": s.cfg.SalesAccountCode,
		},
		"PurchaseDetails": map[string]any{
			"UnitPrice":   product.PurchasePrice,
			"AccountCode": s.cfg.PurchaseAccountCode,
		},
	}
	if product.TrackInventory == nil || *product.TrackInventory {
		body["IsTrackedAsInventory"] = true
		body["InventoryAssetAccountCode"] = s.cfg.InventoryAccountCode
	}

	remoteId, err := deps.ExternalId(ctx, EntityItem, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[itemSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

type zentryItem struct {
	ItemID       string `json:"ItemID"`
	Code         string `json:"Code"`
	Name         string `json:"Name"`
	Description  string `json:"Description"`
	SalesDetails struct {
		UnitPrice decimal.Decimal `json:"UnitPrice"`
	} `json:"SalesDetails"`
	PurchaseDetails struct {
		UnitPrice decimal.Decimal `json:"UnitPrice"`
	} `json:"PurchaseDetails"`
	IsTrackedAsInventory bool   `json:"IsTrackedAsInventory"`
	UpdatedDateUTC       string `json:"UpdatedDateUTC"`
}

func (s *itemSyncer) MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error) {
	var item zentryItem
	if err := json.Unmarshal(remote.Data, &item); err != nil {
		return nil, &StructuralError{Path: itemSpec.path, Detail: err.Error()}
	}
	if strings.TrimSpace(item.Code) == "" {
		return nil, &StructuralError{Path: itemSpec.path, Detail: "item has no code"}
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil, &StructuralError{Path: itemSpec.path, Detail: "item has no name"}
	}
	return &LocalPatch{Data: &item}, nil
}

func (s *itemSyncer) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error) {
	item, ok := patch.Data.(*zentryItem)
	if !ok {
		return "", fmt.Errorf("item upsert: unexpected patch shape")
	}

	var row models.Product
	if patch.LocalId != "" {
		if err := tx.WithContext(ctx).Where("company_id = ? AND id = ?", s.companyId, patch.LocalId).Take(&row).Error; err != nil {
			return "", err
		}
	} else {
		// SKU is the smart-match key for products.
		err := tx.WithContext(ctx).Where("company_id = ? AND sku = ?", s.companyId, item.Code).Take(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	row.CompanyId = s.companyId
	row.Sku = item.Code
	row.Name = item.Name
	row.Description = item.Description
	row.SalesPrice = item.SalesDetails.UnitPrice
	row.PurchasePrice = item.PurchaseDetails.UnitPrice
	row.TrackInventory = boolPtr(item.IsTrackedAsInventory)
	if row.IsActive == nil {
		row.IsActive = boolPtr(true)
	}
	if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
		return "", err
	}
	return strconv.Itoa(row.ID), nil
}

func (s *itemSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	for _, p := range payloads {
		if _, mapped := p.Body[itemSpec.idField]; mapped {
			continue
		}
		code, _ := p.Body["Code"].(string)
		if code == "" {
			continue
		}
		match, err := findRemoteByKey(ctx, api, itemSpec, fmt.Sprintf(`Code=="%s"`, escapeWhere(code)))
		if err != nil {
			return nil, err
		}
		if match != nil {
			p.Body[itemSpec.idField] = match.Id
		} else if !s.cfg.AllowCreate[EntityItem] {
			return nil, &DependencyUnresolvableError{
				EntityType: EntityItem,
				LocalId:    p.LocalId,
				Err:        fmt.Errorf("no remote item with code %q and creation is disallowed", code),
			}
		}
	}
	return postPositionalBatch(ctx, api, itemSpec, payloads)
}
