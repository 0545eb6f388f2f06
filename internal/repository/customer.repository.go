package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/pkg/pg"
	"gorm.io/gorm"
)

// ErrCustomerNotFound is returned when a customer does not exist.
var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) Get(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CustomerEntity{})

	if f.Name != nil && *f.Name != "" {
		q = q.Where("name LIKE ?", "%"+*f.Name+"%")
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CustomerEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCustomerModels(entities), total, nil
}

// Nearby returns customers within radiusM of the center, nearest first. The
// SQL bounding box narrows the candidate set; the exact haversine check runs
// in Go so the query stays portable across drivers.
func (r *CustomerRepository) Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error) {
	box := model.BoundingBoxFor(lat, lng, radiusM)

	var entities []*CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("lng BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	result := make([]*model.CustomerWithDistance, 0, len(entities))
	for _, e := range entities {
		d := model.DistanceM(lat, lng, e.Lat, e.Lng)
		if d <= float64(radiusM) {
			result = append(result, &model.CustomerWithDistance{
				Customer:  *toCustomerModel(e),
				DistanceM: d,
			})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DistanceM < result[j].DistanceM
	})

	return result, nil
}

func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&CustomerEntity{}).Count(&count).Error
	return count, err
}
