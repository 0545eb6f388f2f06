package fixtures

import (
	"github.com/nearwave/geocampaign/internal/model"
)

// Gangnam station, the center used by most geo fixtures.
const (
	CenterLat = 37.4979
	CenterLng = 127.0276
)

func NewTestCustomer(name, phone string, lat, lng float64) *model.Customer {
	return &model.Customer{
		Name:  name,
		Phone: phone,
		Lat:   lat,
		Lng:   lng,
	}
}

func NewTestLocation(name string, radiusM int) *model.TargetingLocation {
	return &model.TargetingLocation{
		Name:      name,
		CenterLat: CenterLat,
		CenterLng: CenterLng,
		RadiusM:   radiusM,
	}
}

func NewTestCampaignCreateRequest(name, message string, locationID *int64) model.CampaignCreateRequest {
	return model.CampaignCreateRequest{
		Name:                name,
		Message:             message,
		TargetingLocationID: locationID,
	}
}

var ValidPhoneNumbers = []string{
	"+821011112222",
	"+821033334444",
	"+821055556666",
}
