package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/nearwave/geocampaign/internal/services"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

// envelope is the uniform response shape consumed by the console.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type listData struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeSuccess(ctx *xhttp.RequestCtx, status int, data any) {
	writeJSON(ctx, status, envelope{Success: true, Data: data})
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, envelope{Success: false, Message: msg})
}

// writeServiceError maps domain errors onto HTTP statuses: missing entities
// to 404, state conflicts to 409, everything else to 400.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound),
		errors.Is(err, repository.ErrTargetingLocationNotFound),
		errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrDeliveryNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrCampaignNotEditable),
		errors.Is(err, model.ErrCampaignNotDeletable),
		errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, services.ErrSendInProgress),
		errors.Is(err, services.ErrLocationInUse):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	}
}

func pathID(ctx *xhttp.RequestCtx) (int64, error) {
	v, _ := ctx.UserValue("id").(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryFloat(ctx *xhttp.RequestCtx, key string) (float64, error) {
	return strconv.ParseFloat(query(ctx, key), 64)
}

func parsePagination(ctx *xhttp.RequestCtx) (limit, offset int, desc bool) {
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}
	desc = strings.EqualFold(query(ctx, "order"), "desc")
	return limit, offset, desc
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
