package service

import (
	"context"
	"errors"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context, actor domain.Actor) ([]domain.Product, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, s.storageFailure("list products", err)
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireStaff(actor); err != nil {
		return domain.Product{}, err
	}
	if err := validateStock(req.UnitPrice.Valid && req.UnitPrice.Decimal.IsNegative(), req.Amount); err != nil {
		return domain.Product{}, err
	}

	name := normalizeProductName(req.Name)
	if name == "" {
		return domain.Product{}, validationError("prod_name is required")
	}

	if _, err := s.repo.FindProductByName(ctx, name); err == nil {
		return domain.Product{}, conflictError("product %q already exists", name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, s.storageFailure("find product", err)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:      name,
		UnitPrice: req.UnitPrice,
		Amount:    req.Amount,
		UserID:    actor.ID,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Product{}, conflictError("product %q already exists", name)
		}
		return domain.Product{}, s.storageFailure("create product", err)
	}
	return *created, nil
}

// UpdateProduct changes price and stock of the product named by id or, when the
// id is absent, by name. Fields left out of the request keep their values.
func (s *Service) UpdateProduct(ctx context.Context, actor domain.Actor, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireStaff(actor); err != nil {
		return domain.Product{}, err
	}
	if err := validateStock(req.UnitPrice.Valid && req.UnitPrice.Decimal.IsNegative(), req.Amount); err != nil {
		return domain.Product{}, err
	}

	var (
		existing *domain.Product
		err      error
	)
	name := normalizeProductName(req.Name)
	switch {
	case req.ID > 0:
		existing, err = s.repo.GetProduct(ctx, req.ID)
	case name != "":
		existing, err = s.repo.FindProductByName(ctx, name)
	default:
		return domain.Product{}, validationError("prod_id or prod_name is required")
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, notFoundError("product not found")
		}
		return domain.Product{}, s.storageFailure("find product", err)
	}

	updated := *existing
	if req.UnitPrice.Valid {
		updated.UnitPrice = req.UnitPrice
	}
	if req.Amount != nil {
		updated.Amount = req.Amount
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, notFoundError("product not found")
		}
		return domain.Product{}, s.storageFailure("update product", err)
	}
	return *saved, nil
}

// DeleteProduct succeeds for unknown ids. Products already used by a recorded
// order or pawn cannot be removed.
func (s *Service) DeleteProduct(ctx context.Context, actor domain.Actor, id int64) (bool, error) {
	if err := requireStaff(actor); err != nil {
		return false, err
	}
	if id < 1 {
		return false, validationError("prod_id must be positive")
	}

	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrReferenced) {
			return false, conflictError("product %d is used by recorded transactions", id)
		}
		return false, s.storageFailure("delete product", err)
	}
	if !deleted {
		s.logger.Debug().Int64("prod_id", id).Msg("delete of unknown product ignored")
	}
	return deleted, nil
}

func validateStock(negativePrice bool, amount *int64) error {
	if negativePrice {
		return validationError("unit_price must not be negative")
	}
	if amount != nil && *amount < 0 {
		return validationError("amount must not be negative")
	}
	return nil
}
