package handler

import (
	"context"

	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/service"
)

type categoryListInput struct {
	UserID string `json:"userId"`
}

type categoryFilterInput struct {
	UserID  string  `json:"userId"`
	Name    *string `json:"name"`
	OrderBy string  `json:"orderBy"`
}

type categoryCreateInput struct {
	Name        string `json:"name"`
	UserID      string `json:"userId"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type idInput struct {
	ID string `json:"id"`
}

// deleted is the result of a delete procedure.
type deleted struct {
	ID string `json:"id"`
}

// CategoryHandler binds the category.* procedures to the CategoryService.
type CategoryHandler struct {
	service *service.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(svc *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: svc}
}

// Register adds category.getByUser, category.getFilters, category.create and
// category.delete.
func (h *CategoryHandler) Register(p *Procedures) {
	p.Query("category.getByUser", bind(h.getByUser))
	p.Query("category.getFilters", bind(h.getFilters))
	p.Mutation("category.create", bind(h.create))
	p.Mutation("category.delete", bind(h.delete))
}

func (h *CategoryHandler) getByUser(ctx context.Context, in categoryListInput) ([]model.Category, error) {
	return h.service.List(ctx, sessionUserID(ctx), in.UserID)
}

func (h *CategoryHandler) getFilters(ctx context.Context, in categoryFilterInput) ([]model.Category, error) {
	return h.service.ListFiltered(ctx, sessionUserID(ctx), in.UserID, in.Name, in.OrderBy)
}

func (h *CategoryHandler) create(ctx context.Context, in categoryCreateInput) (*model.Category, error) {
	return h.service.Create(ctx, sessionUserID(ctx), in.Name, in.UserID, in.Description, in.Color)
}

func (h *CategoryHandler) delete(ctx context.Context, in idInput) (deleted, error) {
	if err := h.service.Delete(ctx, sessionUserID(ctx), in.ID); err != nil {
		return deleted{}, err
	}
	return deleted{ID: in.ID}, nil
}
