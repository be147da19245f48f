package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/model"
)

type VariantResolver interface {
	// Resolve finds the variant of productID for the requested size and color.
	// Size must match exactly; color is honoured when possible.
	Resolve(ctx context.Context, productID uuid.UUID, size *string, color string) (*model.Variant, error)
}

func NewVariantResolver(repo model.VariantRepository, logger logrus.FieldLogger) VariantResolver {
	return &variantResolver{repo: repo, logger: logger}
}

type variantResolver struct {
	repo   model.VariantRepository
	logger logrus.FieldLogger
}

func (r *variantResolver) Resolve(ctx context.Context, productID uuid.UUID, size *string, color string) (*model.Variant, error) {
	size = normalizeSize(size)
	color = strings.TrimSpace(color)
	if color == "" {
		color = model.DefaultColor
	}

	variants, err := r.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list variants of product %s", productID)
	}

	var colorless, fallback *model.Variant
	for i := range variants {
		v := &variants[i]
		if !sizeEqual(v.Size, size) {
			continue
		}
		if color == model.DefaultColor || (v.Color != nil && *v.Color == color) {
			return v, nil
		}
		// A Default colored variant fits any requested color.
		if colorless == nil && v.Color != nil && *v.Color == model.DefaultColor {
			colorless = v
		}
		if fallback == nil {
			fallback = v
		}
	}

	if colorless != nil {
		return colorless, nil
	}
	if fallback != nil {
		r.logger.WithFields(logrus.Fields{
			"product_id": productID,
			"variant_id": fallback.ID,
			"color":      color,
		}).Warn("no variant with requested color, falling back to size match")
		return fallback, nil
	}

	return nil, &model.VariantNotFoundError{ProductID: productID, Size: size, Color: color}
}

func normalizeSize(size *string) *string {
	if size == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*size)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sizeEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
