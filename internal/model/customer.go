package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyCustomerName  = errors.New("customer name is required")
	ErrEmptyCustomerPhone = errors.New("customer phone is required")
)

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"createdAt"`
}

// CustomerWithDistance carries the distance from a query center, in meters.
type CustomerWithDistance struct {
	Customer
	DistanceM float64 `json:"distanceM"`
}

type CustomerCreateRequest struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Lat     float64
	Lng     float64
}

func (p CustomerCreateRequest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyCustomerName
	}
	if strings.TrimSpace(p.Phone) == "" {
		return ErrEmptyCustomerPhone
	}
	if p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidLatitude
	}
	if p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

type CustomerFilter struct {
	Name   *string
	Limit  int
	Offset int
	Desc   bool
}
