package model

// DashboardSummary holds the entity totals shown on the console landing page.
type DashboardSummary struct {
	TotalCustomers          int64 `json:"totalCustomers"`
	TotalCampaigns          int64 `json:"totalCampaigns"`
	TotalTargetingLocations int64 `json:"totalTargetingLocations"`
	ActiveDeliveries        int64 `json:"activeDeliveries"`
	CompletedDeliveries     int64 `json:"completedDeliveries"`
}

// CustomerDistribution buckets customers by targeting location.
type CustomerDistribution struct {
	LocationID   int64  `json:"locationId"`
	LocationName string `json:"locationName"`
	Customers    int64  `json:"customers"`
}
