package masterdata

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

type fakeRepo struct {
	materials map[int64]Material
	vendors   map[int64]Vendor
	nextID    int64
	getCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{materials: map[int64]Material{}, vendors: map[int64]Vendor{}}
}

func (f *fakeRepo) GetMaterial(_ context.Context, id int64) (Material, error) {
	f.getCalls++
	m, ok := f.materials[id]
	if !ok {
		return Material{}, ErrMaterialNotFound
	}
	return m, nil
}

func (f *fakeRepo) MaterialExists(_ context.Context, id int64) (bool, error) {
	m, ok := f.materials[id]
	return ok && m.IsActive, nil
}

func (f *fakeRepo) CreateMaterial(_ context.Context, m Material) (Material, error) {
	f.nextID++
	m.ID = f.nextID
	f.materials[m.ID] = m
	return m, nil
}

func (f *fakeRepo) UpdateMaterial(_ context.Context, id int64, m Material) error {
	if _, ok := f.materials[id]; !ok {
		return ErrMaterialNotFound
	}
	m.ID = id
	f.materials[id] = m
	return nil
}

func (f *fakeRepo) ListMaterials(_ context.Context, _ ListFilters) ([]Material, int, error) {
	var out []Material
	for _, m := range f.materials {
		out = append(out, m)
	}
	return out, len(out), nil
}

func (f *fakeRepo) LowStockMaterials(context.Context) ([]Material, error) {
	var out []Material
	for _, m := range f.materials {
		if m.IsActive && m.StockOnHand.LessThanOrEqual(m.MinStock) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetVendor(_ context.Context, id int64) (Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return Vendor{}, ErrVendorNotFound
	}
	return v, nil
}

func (f *fakeRepo) CreateVendor(_ context.Context, v Vendor) (Vendor, error) {
	f.nextID++
	v.ID = f.nextID
	f.vendors[v.ID] = v
	return v, nil
}

func (f *fakeRepo) UpdateVendor(_ context.Context, id int64, v Vendor) error {
	if _, ok := f.vendors[id]; !ok {
		return ErrVendorNotFound
	}
	v.ID = id
	f.vendors[id] = v
	return nil
}

func (f *fakeRepo) ListVendors(_ context.Context, _ ListFilters) ([]Vendor, int, error) {
	var out []Vendor
	for _, v := range f.vendors {
		out = append(out, v)
	}
	return out, len(out), nil
}

func newCachedService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewMaterialCache(client, time.Minute), nil)
}

func TestGetMaterialReadThroughCache(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.materials[1] = Material{ID: 1, Code: "MAT-001", Name: "Tepung Terigu", Unit: "kg", IsActive: true}
	svc := newCachedService(t, repo)

	first, err := svc.GetMaterial(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "MAT-001", first.Code)
	require.Equal(t, 1, repo.getCalls)

	second, err := svc.GetMaterial(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first.Code, second.Code)
	require.Equal(t, 1, repo.getCalls, "second read must hit the cache")
}

func TestUpdateMaterialInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.materials[1] = Material{ID: 1, Code: "MAT-001", Name: "Tepung Terigu", Unit: "kg", IsActive: true}
	svc := newCachedService(t, repo)

	_, err := svc.GetMaterial(ctx, 1)
	require.NoError(t, err)

	updated := repo.materials[1]
	updated.Name = "Tepung Premium"
	require.NoError(t, svc.UpdateMaterial(ctx, 1, updated, "admin"))

	after, err := svc.GetMaterial(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Tepung Premium", after.Name)
	require.Equal(t, 2, repo.getCalls)
}

func TestCreateMaterialValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo(), nil, nil)

	_, err := svc.CreateMaterial(ctx, Material{Name: "no code"}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateMaterial(ctx, Material{Code: "X", Name: "Y", MinStock: decimal.NewFromInt(-1)}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.CreateMaterial(ctx, Material{Code: "MAT-002", Name: "Gula", Unit: "kg", IsActive: true}, "admin")
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestVendorValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo(), nil, nil)

	_, err := svc.CreateVendor(ctx, Vendor{Code: "V-1"}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.CreateVendor(ctx, Vendor{Code: "V-1", Name: "PT Sumber Makmur", IsActive: true}, "admin")
	require.NoError(t, err)

	err = svc.UpdateVendor(ctx, created.ID+99, created, "admin")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
