package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nearwave/geocampaign/internal/model"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type CustomerService interface {
	Create(ctx context.Context, p model.CustomerCreateRequest) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int64, error)
	Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error)
}

type CustomerHandler struct {
	svc CustomerService
}

func RegisterCustomerRoutes(e *router.Group, h *CustomerHandler) {
	e.GET("/customers", h.ListCustomers)
	e.GET("/customers/nearby", h.ListNearbyCustomers)
	e.GET("/customers/{id}", h.GetCustomer)
	e.POST("/customers", h.CreateCustomer)
}

func NewCustomerHandler(customerService CustomerService) *CustomerHandler {
	return &CustomerHandler{
		svc: customerService,
	}
}

type customerRequest struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CustomerHandler) ListCustomers(ctx *xhttp.RequestCtx) {
	var f model.CustomerFilter

	if v := query(ctx, "name"); v != "" {
		f.Name = &v
	}
	f.Limit, f.Offset, f.Desc = parsePagination(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, listData{Items: items, Total: total})
}

func (h *CustomerHandler) GetCustomer(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid customer id")
		return
	}

	c, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, c)
}

func (h *CustomerHandler) CreateCustomer(ctx *xhttp.RequestCtx) {
	var req customerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.svc.Create(ctx, model.CustomerCreateRequest{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
		Lat:     req.Lat,
		Lng:     req.Lng,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusCreated, c)
}

func (h *CustomerHandler) ListNearbyCustomers(ctx *xhttp.RequestCtx) {
	lat, err := queryFloat(ctx, "lat")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid lat")
		return
	}
	lng, err := queryFloat(ctx, "lng")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid lng")
		return
	}
	radius, err := strconv.Atoi(query(ctx, "radiusM"))
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid radiusM")
		return
	}

	customers, err := h.svc.Nearby(ctx, lat, lng, radius)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, listData{Items: customers, Total: int64(len(customers))})
}
