package handler

import (
	"context"

	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/service"
)

type entryListInput struct {
	UserID string `json:"userId"`
}

type entryFilterInput struct {
	UserID     string  `json:"userId"`
	Time       *string `json:"time"`
	WasSpecial *bool   `json:"wasSpecial"`
	DayCreated *string `json:"dayCreated"`
	CategoryID *string `json:"categoryId"`
	OrderBy    string  `json:"orderBy"`
}

type entryCreateInput struct {
	Time       string  `json:"time"`
	WasSpecial *bool   `json:"wasSpecial"`
	DayCreated string  `json:"dayCreated"`
	UserID     string  `json:"userId"`
	Message    string  `json:"message"`
	CategoryID *string `json:"categoryId"`
}

type entryEditInput struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	Time       *string `json:"time"`
	WasSpecial *bool   `json:"wasSpecial"`
	DayCreated *string `json:"dayCreated"`
	Message    *string `json:"message"`
	CategoryID *string `json:"categoryId"`
}

// EntryHandler binds the times.* procedures to the EntryService. Every
// procedure is also reachable under task.* for older clients.
type EntryHandler struct {
	service *service.EntryService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(svc *service.EntryService) *EntryHandler {
	return &EntryHandler{service: svc}
}

func (h *EntryHandler) Register(p *Procedures) {
	p.Query("times.getAll", bind(h.getAll))
	p.Query("times.getRecentTasks", bind(h.getRecent))
	p.Alias("times.getByUser", "times.getRecentTasks")
	p.Query("times.getFilters", bind(h.getFilters))
	p.Mutation("times.create", bind(h.create))
	p.Mutation("times.edit", bind(h.edit))
	p.Mutation("times.delete", bind(h.delete))

	p.AliasNamespace("task", "times")
}

func (h *EntryHandler) getAll(ctx context.Context, _ struct{}) ([]model.Entry, error) {
	return h.service.ListAll(ctx)
}

func (h *EntryHandler) getRecent(ctx context.Context, in entryListInput) ([]model.Entry, error) {
	return h.service.ListRecent(ctx, sessionUserID(ctx), in.UserID)
}

func (h *EntryHandler) getFilters(ctx context.Context, in entryFilterInput) ([]model.Entry, error) {
	return h.service.ListFiltered(ctx, sessionUserID(ctx), service.EntryFilterParams{
		UserID:     in.UserID,
		Time:       in.Time,
		WasSpecial: in.WasSpecial,
		DayCreated: in.DayCreated,
		CategoryID: in.CategoryID,
		OrderBy:    in.OrderBy,
	})
}

func (h *EntryHandler) create(ctx context.Context, in entryCreateInput) (*model.Entry, error) {
	return h.service.Create(ctx, sessionUserID(ctx), service.CreateEntryParams{
		Time:       in.Time,
		WasSpecial: in.WasSpecial,
		DayCreated: in.DayCreated,
		UserID:     in.UserID,
		Message:    in.Message,
		CategoryID: in.CategoryID,
	})
}

func (h *EntryHandler) edit(ctx context.Context, in entryEditInput) (*model.Entry, error) {
	return h.service.Edit(ctx, sessionUserID(ctx), service.EditEntryParams{
		ID:         in.ID,
		UserID:     in.UserID,
		Time:       in.Time,
		WasSpecial: in.WasSpecial,
		DayCreated: in.DayCreated,
		Message:    in.Message,
		CategoryID: in.CategoryID,
	})
}

func (h *EntryHandler) delete(ctx context.Context, in idInput) (deleted, error) {
	if err := h.service.Delete(ctx, sessionUserID(ctx), in.ID); err != nil {
		return deleted{}, err
	}
	return deleted{ID: in.ID}, nil
}
