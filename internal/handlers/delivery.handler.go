package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/nearwave/geocampaign/internal/model"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type DeliveryService interface {
	Get(ctx context.Context, id int64) (*model.Delivery, error)
	List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error)
	Summary(ctx context.Context, campaignID *int64) (*model.DeliverySummary, error)
	Hourly(ctx context.Context, campaignID *int64, from, to time.Time) ([]*model.HourlyDeliveries, error)
}

type DeliveryHandler struct {
	svc DeliveryService
}

func RegisterDeliveryRoutes(e *router.Group, h *DeliveryHandler) {
	e.GET("/deliveries", h.ListDeliveries)
	e.GET("/deliveries/{id}", h.GetDelivery)
	e.GET("/deliveries/summary", h.GetSummary)
	e.GET("/deliveries/hourly", h.GetHourly)
}

func NewDeliveryHandler(deliveryService DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{
		svc: deliveryService,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *DeliveryHandler) ListDeliveries(ctx *xhttp.RequestCtx) {
	var f model.DeliveryFilter

	if v := query(ctx, "campaignId"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CampaignID = &id
		}
	}
	if v := query(ctx, "customerId"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CustomerID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.Statuses = append(f.Statuses, model.DeliveryStatus(strings.ToUpper(part)))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	f.Limit, f.Offset, f.Desc = parsePagination(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, listData{Items: items, Total: total})
}

func (h *DeliveryHandler) GetDelivery(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid delivery id")
		return
	}

	d, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, d)
}

func (h *DeliveryHandler) GetSummary(ctx *xhttp.RequestCtx) {
	var campaignID *int64
	if v := query(ctx, "campaignId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid campaignId")
			return
		}
		campaignID = &id
	}

	summary, err := h.svc.Summary(ctx, campaignID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, summary)
}

func (h *DeliveryHandler) GetHourly(ctx *xhttp.RequestCtx) {
	var campaignID *int64
	if v := query(ctx, "campaignId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid campaignId")
			return
		}
		campaignID = &id
	}

	var from, to time.Time
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			from = t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			to = t
		}
	}

	buckets, err := h.svc.Hourly(ctx, campaignID, from, to)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, buckets)
}
