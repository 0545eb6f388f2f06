package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nearwave/geocampaign/internal/model"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error)
	Delete(ctx context.Context, id int64) error
	Send(ctx context.Context, id int64) (*model.Campaign, error)
	Pause(ctx context.Context, id int64) (*model.Campaign, error)
	Cancel(ctx context.Context, id int64) (*model.Campaign, error)
}

type CampaignStatsService interface {
	Summary(ctx context.Context, campaignID *int64) (*model.DeliverySummary, error)
}

type CampaignHandler struct {
	svc   CampaignService
	stats CampaignStatsService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.POST("/campaigns", h.CreateCampaign)
	e.PUT("/campaigns/{id}", h.UpdateCampaign)
	e.DELETE("/campaigns/{id}", h.DeleteCampaign)
	e.POST("/campaigns/{id}/send", h.SendCampaign)
	e.POST("/campaigns/{id}/pause", h.PauseCampaign)
	e.POST("/campaigns/{id}/cancel", h.CancelCampaign)
	e.GET("/campaigns/{id}/stats", h.GetCampaignStats)
}

func NewCampaignHandler(campaignService CampaignService, statsService CampaignStatsService) *CampaignHandler {
	return &CampaignHandler{
		svc:   campaignService,
		stats: statsService,
	}
}

type campaignRequest struct {
	Name                string `json:"name"`
	Message             string `json:"message"`
	Description         string `json:"description"`
	ImageURL            string `json:"imageUrl"`
	ImageAlt            string `json:"imageAlt"`
	TargetingLocationID *int64 `json:"targetingLocationId"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	var f model.CampaignFilter

	if v := query(ctx, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.Statuses = append(f.Statuses, model.CampaignStatus(strings.ToUpper(part)))
			}
		}
	}
	if v := query(ctx, "targetingLocationId"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.TargetingLocationID = &id
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

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	c, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, c)
}

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req campaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.svc.Create(ctx, model.CampaignCreateRequest{
		Name:                req.Name,
		Message:             req.Message,
		Description:         req.Description,
		ImageURL:            req.ImageURL,
		ImageAlt:            req.ImageAlt,
		TargetingLocationID: req.TargetingLocationID,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusCreated, c)
}

func (h *CampaignHandler) UpdateCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	var req campaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.svc.Update(ctx, id, model.CampaignUpdateRequest{
		Name:                req.Name,
		Message:             req.Message,
		Description:         req.Description,
		ImageURL:            req.ImageURL,
		ImageAlt:            req.ImageAlt,
		TargetingLocationID: req.TargetingLocationID,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, c)
}

func (h *CampaignHandler) DeleteCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, nil)
}

func (h *CampaignHandler) SendCampaign(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Send)
}

func (h *CampaignHandler) PauseCampaign(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Pause)
}

func (h *CampaignHandler) CancelCampaign(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Cancel)
}

func (h *CampaignHandler) transition(ctx *xhttp.RequestCtx, op func(context.Context, int64) (*model.Campaign, error)) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	c, err := op(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, c)
}

func (h *CampaignHandler) GetCampaignStats(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	// 404 for a campaign that does not exist, not an empty rollup.
	if _, err := h.svc.Get(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}

	summary, err := h.stats.Summary(ctx, &id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusOK, summary)
}
