package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

func normalizeIdentity(identity domain.CustomerIdentity) domain.CustomerIdentity {
	identity.PhoneNumber = strings.TrimSpace(identity.PhoneNumber)
	identity.Name = strings.TrimSpace(identity.Name)
	identity.Address = strings.TrimSpace(identity.Address)
	return identity
}

func normalizeProductName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// resolveCustomer finds the user account matching the identity's id or phone and
// refreshes its name and address, or registers a new account. Blank name or
// address keep the stored values.
func resolveCustomer(ctx context.Context, q store.Queries, identity domain.CustomerIdentity) (*domain.Account, error) {
	identity = normalizeIdentity(identity)
	if identity.ID == 0 && identity.PhoneNumber == "" {
		return nil, validationError("customer id or phone number is required")
	}

	existing, err := q.FindCustomer(ctx, identity.ID, identity.PhoneNumber)
	switch {
	case err == nil:
		updated := *existing
		if identity.Name != "" {
			updated.Name = identity.Name
		}
		if identity.Address != "" {
			updated.Address = identity.Address
		}
		if updated.Name != existing.Name || updated.Address != existing.Address {
			if err := q.UpdateCustomer(ctx, updated); err != nil {
				return nil, err
			}
		}
		return &updated, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if identity.PhoneNumber == "" {
		return nil, notFoundError("customer %d not found; a phone number is required to register a new customer", identity.ID)
	}
	if identity.Name == "" {
		return nil, validationError("customer name is required to register a new customer")
	}

	created, err := q.CreateAccount(ctx, domain.Account{
		Name:        identity.Name,
		PhoneNumber: identity.PhoneNumber,
		Address:     identity.Address,
		Role:        domain.RoleUser,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, conflictError("phone number %s already belongs to another customer", identity.PhoneNumber)
		}
		return nil, err
	}
	return created, nil
}

// resolveProduct looks a product up by case-folded name and creates it when
// unseen. Price and amount only apply to a newly created product.
func resolveProduct(ctx context.Context, q store.Queries, name string, unitPrice decimal.NullDecimal, amount *int64, ownerID int64) (*domain.Product, error) {
	name = normalizeProductName(name)
	if name == "" {
		return nil, validationError("product name is required")
	}

	existing, err := q.FindProductByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := q.CreateProduct(ctx, domain.Product{
		Name:      name,
		UnitPrice: unitPrice,
		Amount:    amount,
		UserID:    ownerID,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, conflictError("product %q already exists", name)
		}
		return nil, err
	}
	return created, nil
}
