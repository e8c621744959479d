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
	"github.com/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

// contactSyncer handles both contact roles. A customer and a vendor are
// distinct entity types in the mapping store even when the remote side is the
// same contact record; this is intentional (the same remote id may be linked
// under both types).
type contactSyncer struct {
	entityType string
	companyId  string
	cfg        Config
}

func NewCustomerSyncer(companyId string, cfg Config) EntitySyncer {
	return &contactSyncer{entityType: EntityCustomer, companyId: companyId, cfg: cfg}
}

func NewVendorSyncer(companyId string, cfg Config) EntitySyncer {
	return &contactSyncer{entityType: EntityVendor, companyId: companyId, cfg: cfg}
}

func (s *contactSyncer) EntityType() string { return s.entityType }
func (s *contactSyncer) PushOnly() bool     { return false }

type contactFields struct {
	Name     string
	Email    string
	Phone    string
	Mobile   string
	IsActive bool
}

func (s *contactSyncer) ShouldSync(ctx context.Context, local *LocalEntity) (bool, string) {
	if local.Status == "inactive" {
		return false, "contact is inactive"
	}
	return true, ""
}

func (s *contactSyncer) FetchLocal(ctx context.Context, db *gorm.DB, id string) (*LocalEntity, error) {
	out, err := s.FetchLocalBatch(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	return out[id], nil
}

func (s *contactSyncer) FetchLocalBatch(ctx context.Context, db *gorm.DB, ids []string) (map[string]*LocalEntity, error) {
	out := make(map[string]*LocalEntity, len(ids))
	if s.entityType == EntityCustomer {
		var rows []models.Customer
		if err := db.WithContext(ctx).
			Where("company_id = ? AND id IN ?", s.companyId, ids).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			row := rows[i]
			out[strconv.Itoa(row.ID)] = &LocalEntity{
				Id:        strconv.Itoa(row.ID),
				CompanyId: row.CompanyId,
				Status:    activeStatus(row.IsActive),
				UpdatedAt: row.UpdatedAt,
				Data: &contactFields{
					Name:     row.Name,
					Email:    row.Email,
					Phone:    row.Phone,
					Mobile:   row.Mobile,
					IsActive: row.IsActive == nil || *row.IsActive,
				},
				Raw: row,
			}
		}
		return out, nil
	}

	var rows []models.Supplier
	if err := db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", s.companyId, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		row := rows[i]
		out[strconv.Itoa(row.ID)] = &LocalEntity{
			Id:        strconv.Itoa(row.ID),
			CompanyId: row.CompanyId,
			Status:    activeStatus(row.IsActive),
			UpdatedAt: row.UpdatedAt,
			Data: &contactFields{
				Name:     row.Name,
				Email:    row.Email,
				Phone:    row.Phone,
				Mobile:   row.Mobile,
				IsActive: row.IsActive == nil || *row.IsActive,
			},
			Raw: row,
		}
	}
	return out, nil
}

func (s *contactSyncer) ListLocalModifiedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	table := "customers"
	if s.entityType == EntityVendor {
		table = "suppliers"
	}
	var ids []int
	if err := db.WithContext(ctx).
		Table(table).
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

func (s *contactSyncer) FetchRemote(ctx context.Context, api Transport, remoteId string) (*RemoteEntity, error) {
	return fetchRemoteByID(ctx, api, contactSpec, remoteId)
}

func (s *contactSyncer) FetchRemoteBatch(ctx context.Context, api Transport, remoteIds []string) (map[string]*RemoteEntity, error) {
	return fetchRemoteByIDs(ctx, api, contactSpec, remoteIds)
}

func (s *contactSyncer) FetchRemoteModifiedSince(ctx context.Context, api Transport, since time.Time, page int) ([]*RemoteEntity, bool, error) {
	where := `IsCustomer==true`
	if s.entityType == EntityVendor {
		where = `IsSupplier==true`
	}
	return fetchRemotePage(ctx, api, contactSpec, where, since, page, s.cfg.PageSize)
}

func (s *contactSyncer) RemoteUpdatedAt(remote *RemoteEntity) *time.Time {
	return remoteUpdatedAtOf(remote.Data)
}

func (s *contactSyncer) MapToRemote(ctx context.Context, deps *DependencyResolver, local *LocalEntity) (*RemotePayload, error) {
	fields, ok := local.Data.(*contactFields)
	if !ok {
		return nil, fmt.Errorf("contact %q: unexpected local data shape", local.Id)
	}

	body := map[string]any{
		"Name":          fields.Name,
		"EmailAddress":  fields.Email,
		"ContactStatus": remoteContactStatus(fields.IsActive),
	}
	if s.entityType == EntityCustomer {
		body["IsCustomer"] = true
	} else {
		body["IsSupplier"] = true
	}

	var phones []map[string]any
	if fields.Phone != "" {
		phones = append(phones, map[string]any{"PhoneType": "DEFAULT", "PhoneNumber": fields.Phone})
	}
	if fields.Mobile != "" {
		phones = append(phones, map[string]any{"PhoneType": "MOBILE", "PhoneNumber": fields.Mobile})
	}
	if len(phones) > 0 {
		body["Phones"] = phones
	}

	// Update path: an existing mapping pins the remote id so POST updates
	// rather than creates.
	remoteId, err := deps.ExternalId(ctx, s.entityType, local.Id)
	if err != nil {
		return nil, err
	}
	if remoteId != "" {
		body[contactSpec.idField] = remoteId
	}

	return &RemotePayload{LocalId: local.Id, Body: body}, nil
}

type zentryContact struct {
	ContactID     string `json:"ContactID"`
	Name          string `json:"Name"`
	EmailAddress  string `json:"EmailAddress"`
	ContactStatus string `json:"ContactStatus"`
	Phones        []struct {
		PhoneType   string `json:"PhoneType"`
		PhoneNumber string `json:"PhoneNumber"`
	} `json:"Phones"`
	UpdatedDateUTC string `json:"UpdatedDateUTC"`
}

func (s *contactSyncer) MapToLocal(ctx context.Context, deps *DependencyResolver, remote *RemoteEntity) (*LocalPatch, error) {
	var contact zentryContact
	if err := json.Unmarshal(remote.Data, &contact); err != nil {
		return nil, &StructuralError{Path: contactSpec.path, Detail: err.Error()}
	}
	if strings.TrimSpace(contact.Name) == "" {
		return nil, &StructuralError{Path: contactSpec.path, Detail: "contact has no name"}
	}

	fields := &contactFields{
		Name:     strings.TrimSpace(contact.Name),
		Email:    strings.TrimSpace(contact.EmailAddress),
		IsActive: !strings.EqualFold(contact.ContactStatus, "ARCHIVED"),
	}
	for _, phone := range contact.Phones {
		switch phone.PhoneType {
		case "MOBILE":
			fields.Mobile = phone.PhoneNumber
		default:
			if fields.Phone == "" {
				fields.Phone = phone.PhoneNumber
			}
		}
	}
	return &LocalPatch{Data: fields}, nil
}

func (s *contactSyncer) UpsertLocal(ctx context.Context, tx *gorm.DB, patch *LocalPatch, remoteId string) (string, error) {
	fields, ok := patch.Data.(*contactFields)
	if !ok {
		return "", fmt.Errorf("contact upsert: unexpected patch shape")
	}

	if s.entityType == EntityCustomer {
		return upsertContactRow[models.Customer](ctx, tx, s.companyId, s.cfg, patch.LocalId, fields,
			func(row *models.Customer) {
				row.CompanyId = s.companyId
				row.Name = fields.Name
				row.Email = fields.Email
				row.Phone = fields.Phone
				row.Mobile = fields.Mobile
				row.IsActive = boolPtr(fields.IsActive)
				if row.CustomerPaymentTerms == "" {
					row.CustomerPaymentTerms = models.PaymentTermsDueOnReceipt
				}
			},
			func(row *models.Customer) int { return row.ID })
	}
	return upsertContactRow[models.Supplier](ctx, tx, s.companyId, s.cfg, patch.LocalId, fields,
		func(row *models.Supplier) {
			row.CompanyId = s.companyId
			row.Name = fields.Name
			row.Email = fields.Email
			row.Phone = fields.Phone
			row.Mobile = fields.Mobile
			row.IsActive = boolPtr(fields.IsActive)
			if row.SupplierPaymentTerms == "" {
				row.SupplierPaymentTerms = models.PaymentTermsDueOnReceipt
			}
		},
		func(row *models.Supplier) int { return row.ID })
}

// upsertContactRow updates the hinted row, smart-matches by name when no
// mapping exists yet, and only then creates.
func upsertContactRow[T any](ctx context.Context, tx *gorm.DB, companyId string, cfg Config, hint string, fields *contactFields, apply func(*T), idOf func(*T) int) (string, error) {
	var row T
	if hint != "" {
		if err := tx.WithContext(ctx).Where("company_id = ? AND id = ?", companyId, hint).Take(&row).Error; err != nil {
			return "", err
		}
		apply(&row)
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return "", err
		}
		return strconv.Itoa(idOf(&row)), nil
	}

	err := tx.WithContext(ctx).Where("company_id = ? AND name = ?", companyId, fields.Name).Take(&row).Error
	if err == nil {
		apply(&row)
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return "", err
		}
		return strconv.Itoa(idOf(&row)), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	apply(&row)
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return strconv.Itoa(idOf(&row)), nil
}

func (s *contactSyncer) UpsertRemoteBatch(ctx context.Context, api Transport, payloads []*RemotePayload) ([]RemoteResult, error) {
	// Create-path smart match by name, so a backfill against a remote system
	// that already holds the contact updates it instead of duplicating.
	for _, p := range payloads {
		if _, mapped := p.Body[contactSpec.idField]; mapped {
			continue
		}
		name, _ := p.Body["Name"].(string)
		if name == "" {
			continue
		}
		match, err := findRemoteByKey(ctx, api, contactSpec, fmt.Sprintf(`Name=="%s"`, escapeWhere(name)))
		if err != nil {
			return nil, err
		}
		if match != nil {
			p.Body[contactSpec.idField] = match.Id
		} else if !s.cfg.AllowCreate[s.entityType] {
			return nil, &DependencyUnresolvableError{
				EntityType: s.entityType,
				LocalId:    p.LocalId,
				Err:        fmt.Errorf("no remote contact named %q and creation is disallowed", name),
			}
		}
	}
	return postPositionalBatch(ctx, api, contactSpec, payloads)
}

func activeStatus(isActive *bool) string {
	if isActive != nil && !*isActive {
		return "inactive"
	}
	return "active"
}

func remoteContactStatus(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "ARCHIVED"
}

func boolPtr(v bool) *bool {
	if v {
		return utils.NewTrue()
	}
	return utils.NewFalse()
}
