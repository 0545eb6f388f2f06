package services

import (
	"context"

	"github.com/nearwave/geocampaign/internal/model"
)

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int64, error) // results, totalCount
	Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error)
}

type CustomerService struct {
	customerRepo CustomerRepository
}

func NewCustomerService(customerRepo CustomerRepository) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
	}
}

func (s *CustomerService) Create(ctx context.Context, p model.CustomerCreateRequest) (*model.Customer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &model.Customer{
		Name:    p.Name,
		Phone:   p.Phone,
		Email:   p.Email,
		Address: p.Address,
		Lat:     p.Lat,
		Lng:     p.Lng,
	}

	return s.customerRepo.Create(ctx, c)
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*model.Customer, error) {
	return s.customerRepo.Get(ctx, id)
}

func (s *CustomerService) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int64, error) {
	return s.customerRepo.List(ctx, f)
}

// Nearby returns customers within radiusM of an arbitrary center point.
func (s *CustomerService) Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error) {
	if lat < -90 || lat > 90 {
		return nil, model.ErrInvalidLatitude
	}
	if lng < -180 || lng > 180 {
		return nil, model.ErrInvalidLongitude
	}
	if radiusM < model.MinRadiusM || radiusM > model.MaxRadiusM {
		return nil, model.ErrRadiusOutOfRange
	}
	return s.customerRepo.Nearby(ctx, lat, lng, radiusM)
}
