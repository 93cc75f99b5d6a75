package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/patric-chuzhbe/rango/internal/config"
	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/models"
)

type directory interface {
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)

	ListPagesForCategory(ctx context.Context, category *models.Category) ([]models.Page, error)

	TopCategoriesByLikes(ctx context.Context, n int) ([]models.Category, error)

	TopPagesByViews(ctx context.Context, n int) ([]models.Page, error)
}

// DirectoryHandler serves rango.Directory from the service layer.
type DirectoryHandler struct {
	svc    directory
	policy config.Policy
	topN   int
}

// NewDirectoryHandler returns a handler answering a zero limit with topN
// entries.
func NewDirectoryHandler(svc directory, policy config.Policy, topN int) *DirectoryHandler {
	return &DirectoryHandler{
		svc:    svc,
		policy: policy,
		topN:   topN,
	}
}

func (h *DirectoryHandler) limit(in *wrapperspb.Int32Value) (int, error) {
	switch n := in.GetValue(); {
	case n < 0:
		return 0, status.Error(codes.InvalidArgument, "limit must not be negative")
	case n == 0:
		return h.topN, nil
	default:
		return int(n), nil
	}
}

func categoryValue(c *models.Category) map[string]interface{} {
	return map[string]interface{}{
		"id":    c.ID,
		"name":  c.Name,
		"slug":  c.Slug,
		"views": c.Views,
		"likes": c.Likes,
	}
}

func (h *DirectoryHandler) pageValue(p *models.Page) map[string]interface{} {
	value := map[string]interface{}{
		"id":          p.ID,
		"category_id": p.CategoryID,
		"title":       p.Title,
		"url":         p.URL,
	}
	if h.policy.TrackViewCounts {
		value["views"] = p.Views
	}
	return value
}

func internal(method string, err error) error {
	logger.Log.Debugln("Error calling the `"+method+"()`: ", zap.Error(err))
	return status.Error(codes.Internal, "storage failure")
}

// TopCategories returns the most liked categories.
func (h *DirectoryHandler) TopCategories(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	n, err := h.limit(in)
	if err != nil {
		return nil, err
	}

	categories, err := h.svc.TopCategoriesByLikes(ctx, n)
	if err != nil {
		return nil, internal("h.svc.TopCategoriesByLikes", err)
	}

	values := make([]interface{}, 0, len(categories))
	for i := range categories {
		values = append(values, categoryValue(&categories[i]))
	}

	result, err := structpb.NewList(values)
	if err != nil {
		return nil, internal("structpb.NewList", err)
	}
	return result, nil
}

// Category returns a category and its pages, or NotFound.
func (h *DirectoryHandler) Category(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "slug must not be empty")
	}

	category, err := h.svc.FindCategoryBySlug(ctx, in.GetValue())
	if err != nil {
		return nil, internal("h.svc.FindCategoryBySlug", err)
	}
	if category == nil {
		return nil, status.Errorf(codes.NotFound, "category %q not found", in.GetValue())
	}

	pages, err := h.svc.ListPagesForCategory(ctx, category)
	if err != nil {
		return nil, internal("h.svc.ListPagesForCategory", err)
	}

	pageValues := make([]interface{}, 0, len(pages))
	for i := range pages {
		pageValues = append(pageValues, h.pageValue(&pages[i]))
	}

	result, err := structpb.NewStruct(map[string]interface{}{
		"category": categoryValue(category),
		"pages":    pageValues,
	})
	if err != nil {
		return nil, internal("structpb.NewStruct", err)
	}
	return result, nil
}

// TopPages returns the most viewed pages. It is unavailable when view
// counts are not tracked.
func (h *DirectoryHandler) TopPages(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	if !h.policy.TrackViewCounts {
		return nil, status.Error(codes.FailedPrecondition, "view counts are not tracked")
	}

	n, err := h.limit(in)
	if err != nil {
		return nil, err
	}

	pages, err := h.svc.TopPagesByViews(ctx, n)
	if err != nil {
		return nil, internal("h.svc.TopPagesByViews", err)
	}

	values := make([]interface{}, 0, len(pages))
	for i := range pages {
		values = append(values, h.pageValue(&pages[i]))
	}

	result, err := structpb.NewList(values)
	if err != nil {
		return nil, internal("structpb.NewList", err)
	}
	return result, nil
}
