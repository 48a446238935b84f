package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetMaterial(ctx context.Context, id int64) (Material, error)
	MaterialExists(ctx context.Context, id int64) (bool, error)
	CreateMaterial(ctx context.Context, m Material) (Material, error)
	UpdateMaterial(ctx context.Context, id int64, m Material) error
	ListMaterials(ctx context.Context, filters ListFilters) ([]Material, int, error)
	LowStockMaterials(ctx context.Context) ([]Material, error)

	GetVendor(ctx context.Context, id int64) (Vendor, error)
	CreateVendor(ctx context.Context, v Vendor) (Vendor, error)
	UpdateVendor(ctx context.Context, id int64, v Vendor) error
	ListVendors(ctx context.Context, filters ListFilters) ([]Vendor, int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates master data operations with a read-through cache on
// material lookups.
type Service struct {
	repo  RepositoryPort
	cache *MaterialCache
	audit AuditPort
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *MaterialCache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// GetMaterial returns one material, preferring the cache.
func (s *Service) GetMaterial(ctx context.Context, id int64) (Material, error) {
	if m, ok := s.cache.Get(ctx, id); ok {
		return m, nil
	}
	m, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	s.cache.Set(ctx, m)
	return m, nil
}

// MaterialExists reports whether an active material exists.
func (s *Service) MaterialExists(ctx context.Context, id int64) (bool, error) {
	if _, ok := s.cache.Get(ctx, id); ok {
		return true, nil
	}
	return s.repo.MaterialExists(ctx, id)
}

// CreateMaterial validates and inserts a material.
func (s *Service) CreateMaterial(ctx context.Context, m Material, operator string) (Material, error) {
	if err := validateMaterial(m); err != nil {
		return Material{}, err
	}
	created, err := s.repo.CreateMaterial(ctx, m)
	if err != nil {
		return Material{}, err
	}
	s.recordAudit(ctx, operator, "MATERIAL_CREATE", "material", created.ID, created.Code)
	return created, nil
}

// UpdateMaterial validates and updates a material, dropping the cache entry.
func (s *Service) UpdateMaterial(ctx context.Context, id int64, m Material, operator string) error {
	if err := validateMaterial(m); err != nil {
		return err
	}
	if err := s.repo.UpdateMaterial(ctx, id, m); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	s.recordAudit(ctx, operator, "MATERIAL_UPDATE", "material", id, m.Code)
	return nil
}

// ListMaterials returns a page of materials.
func (s *Service) ListMaterials(ctx context.Context, filters ListFilters) ([]Material, int, error) {
	return s.repo.ListMaterials(ctx, filters)
}

// LowStockMaterials returns active materials at or below minimum stock.
func (s *Service) LowStockMaterials(ctx context.Context) ([]Material, error) {
	return s.repo.LowStockMaterials(ctx)
}

// GetVendor returns one vendor.
func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

// CreateVendor validates and inserts a vendor.
func (s *Service) CreateVendor(ctx context.Context, v Vendor, operator string) (Vendor, error) {
	if err := validateVendor(v); err != nil {
		return Vendor{}, err
	}
	created, err := s.repo.CreateVendor(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, operator, "VENDOR_CREATE", "vendor", created.ID, created.Code)
	return created, nil
}

// UpdateVendor validates and updates a vendor.
func (s *Service) UpdateVendor(ctx context.Context, id int64, v Vendor, operator string) error {
	if err := validateVendor(v); err != nil {
		return err
	}
	if err := s.repo.UpdateVendor(ctx, id, v); err != nil {
		return err
	}
	s.recordAudit(ctx, operator, "VENDOR_UPDATE", "vendor", id, v.Code)
	return nil
}

// ListVendors returns a page of vendors.
func (s *Service) ListVendors(ctx context.Context, filters ListFilters) ([]Vendor, int, error) {
	return s.repo.ListVendors(ctx, filters)
}

func validateMaterial(m Material) error {
	if strings.TrimSpace(m.Code) == "" || strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("masterdata: code and name required: %w", shared.ErrValidation)
	}
	if m.MinStock.IsNegative() {
		return fmt.Errorf("masterdata: min stock must be >= 0: %w", shared.ErrValidation)
	}
	return nil
}

func validateVendor(v Vendor) error {
	if strings.TrimSpace(v.Code) == "" || strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("masterdata: code and name required: %w", shared.ErrValidation)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, operator, action, entity string, id int64, code string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Operator: operator,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"code": code},
	})
}
