package service

import (
	"context"
	"errors"
	"strings"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

func (s *Service) CreateClient(ctx context.Context, actor domain.Actor, req domain.ClientCreateRequest) (domain.Account, error) {
	if err := requireStaff(actor); err != nil {
		return domain.Account{}, err
	}

	identity := normalizeIdentity(domain.CustomerIdentity{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Address:     req.Address,
	})
	if identity.Name == "" || identity.PhoneNumber == "" {
		return domain.Account{}, validationError("cus_name and phone_number are required")
	}

	existing, err := s.repo.SearchCustomers(ctx, domain.CustomerFilter{PhoneNumber: identity.PhoneNumber})
	if err != nil {
		return domain.Account{}, s.storageFailure("search customers", err)
	}
	if len(existing) > 0 {
		return domain.Account{}, conflictError("phone number %s is already registered", identity.PhoneNumber)
	}

	created, err := s.repo.CreateAccount(ctx, domain.Account{
		Name:        identity.Name,
		PhoneNumber: identity.PhoneNumber,
		Address:     identity.Address,
		Role:        domain.RoleUser,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Account{}, conflictError("phone number %s is already registered", identity.PhoneNumber)
		}
		return domain.Account{}, s.storageFailure("create customer", err)
	}
	return *created, nil
}

func (s *Service) ListClients(ctx context.Context, actor domain.Actor) ([]domain.Account, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, s.storageFailure("list customers", err)
	}
	return customers, nil
}

// SearchClients matches every supplied filter field. An empty filter matches
// nothing, and a lookup by id alone fails when the id is unknown.
func (s *Service) SearchClients(ctx context.Context, actor domain.Actor, filter domain.CustomerFilter) ([]domain.Account, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.searchClients(ctx, filter)
}

func (s *Service) searchClients(ctx context.Context, filter domain.CustomerFilter) ([]domain.Account, error) {
	filter.PhoneNumber = strings.TrimSpace(filter.PhoneNumber)
	filter.Name = strings.TrimSpace(filter.Name)
	if filter.IsEmpty() {
		return []domain.Account{}, nil
	}

	customers, err := s.repo.SearchCustomers(ctx, filter)
	if err != nil {
		return nil, s.storageFailure("search customers", err)
	}
	if len(customers) == 0 && filter.IDOnly() {
		return nil, notFoundError("customer %d not found", filter.ID)
	}
	return customers, nil
}

// CustomersWithTransactions lists the customers that own at least one
// transaction of the given kind.
func (s *Service) CustomersWithTransactions(ctx context.Context, actor domain.Actor, kind domain.TransactionKind) ([]domain.Account, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	customers, err := s.repo.ListCustomersWith(ctx, kind)
	if err != nil {
		return nil, s.storageFailure("list customers with "+string(kind)+"s", err)
	}
	return customers, nil
}
