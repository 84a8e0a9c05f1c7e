package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

// CreateOrder resolves the customer and every line's product, then records the
// order header and its lines as one unit of work.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, req domain.OrderCreateRequest) (domain.TransactionResult, error) {
	if err := requireStaff(actor); err != nil {
		return domain.TransactionResult{}, err
	}
	if req.OrderID < 0 {
		return domain.TransactionResult{}, validationError("order_id must be positive")
	}
	if req.Deposit.IsNegative() {
		return domain.TransactionResult{}, validationError("order_deposit must not be negative")
	}
	if len(req.Lines) == 0 {
		return domain.TransactionResult{}, validationError("order_product_detail must contain at least one product")
	}
	orderNames := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		orderNames = append(orderNames, line.ProductName)
	}
	if name, ok := repeatedProduct(orderNames); ok {
		return domain.TransactionResult{}, validationError("product %q appears more than once in order_product_detail", name)
	}

	identity := domain.CustomerIdentity{
		ID:          req.CustomerID,
		PhoneNumber: req.PhoneNumber,
		Name:        req.CustomerName,
		Address:     req.Address,
	}

	var result domain.TransactionResult
	err := s.withinTx(ctx, "create order", func(q store.Queries) error {
		if req.OrderID > 0 {
			exists, err := q.OrderExists(ctx, req.OrderID)
			if err != nil {
				return err
			}
			if exists {
				return conflictError("order %d is already recorded", req.OrderID)
			}
		}

		customer, err := resolveCustomer(ctx, q, identity)
		if err != nil {
			return err
		}

		order, err := q.CreateOrder(ctx, domain.Order{
			ID:         req.OrderID,
			CustomerID: customer.ID,
			Deposit:    req.Deposit,
		})
		if err != nil {
			if isConflict(err) {
				return conflictError("order %d is already recorded", req.OrderID)
			}
			return err
		}

		for _, line := range req.Lines {
			product, err := resolveProduct(ctx, q, line.ProductName, decimal.NullDecimal{}, nil, actor.ID)
			if err != nil {
				return err
			}
			if err := q.CreateOrderDetail(ctx, domain.OrderDetail{
				OrderID:   order.ID,
				ProductID: product.ID,
				Weight:    line.OrderWeight,
				Amount:    line.OrderAmount,
				SellPrice: line.ProductSellPrice,
				LaborCost: line.ProductLaborCost,
				BuyPrice:  line.ProductBuyPrice,
			}); err != nil {
				return err
			}
		}

		result = domain.TransactionResult{
			ID:         order.ID,
			CustomerID: customer.ID,
			Customer:   *customer,
			LineCount:  len(req.Lines),
		}
		return nil
	})
	if err != nil {
		return domain.TransactionResult{}, err
	}

	s.logger.Info().Int64("order_id", result.ID).Int64("cus_id", result.CustomerID).Int("lines", result.LineCount).Msg("order recorded")
	return result, nil
}

// CreatePawn records a pawn like CreateOrder. The pawn date defaults to today and
// must not fall after the expiry date.
func (s *Service) CreatePawn(ctx context.Context, actor domain.Actor, req domain.PawnCreateRequest) (domain.TransactionResult, error) {
	if err := requireStaff(actor); err != nil {
		return domain.TransactionResult{}, err
	}
	if req.PawnID < 0 {
		return domain.TransactionResult{}, validationError("pawn_id must be positive")
	}
	if req.Deposit.IsNegative() {
		return domain.TransactionResult{}, validationError("pawn_deposit must not be negative")
	}

	pawnDate := s.now()
	if strings.TrimSpace(req.PawnDate) != "" {
		parsed, err := parseDate(req.PawnDate)
		if err != nil {
			return domain.TransactionResult{}, validationError("pawn_date must be formatted as YYYY-MM-DD")
		}
		pawnDate = parsed
	}
	pawnDate = truncateDay(pawnDate)

	if strings.TrimSpace(req.PawnExpireDate) == "" {
		return domain.TransactionResult{}, validationError("pawn_expire_date is required")
	}
	expireDate, err := parseDate(req.PawnExpireDate)
	if err != nil {
		return domain.TransactionResult{}, validationError("pawn_expire_date must be formatted as YYYY-MM-DD")
	}
	if pawnDate.After(expireDate) {
		return domain.TransactionResult{}, validationError("pawn_date must not be after pawn_expire_date")
	}
	if len(req.Lines) == 0 {
		return domain.TransactionResult{}, validationError("pawn_product_detail must contain at least one product")
	}
	pawnNames := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		pawnNames = append(pawnNames, line.ProductName)
	}
	if name, ok := repeatedProduct(pawnNames); ok {
		return domain.TransactionResult{}, validationError("product %q appears more than once in pawn_product_detail", name)
	}

	identity := domain.CustomerIdentity{
		ID:          req.CustomerID,
		PhoneNumber: req.PhoneNumber,
		Name:        req.CustomerName,
		Address:     req.Address,
	}

	var result domain.TransactionResult
	err = s.withinTx(ctx, "create pawn", func(q store.Queries) error {
		if req.PawnID > 0 {
			exists, err := q.PawnExists(ctx, req.PawnID)
			if err != nil {
				return err
			}
			if exists {
				return conflictError("pawn %d is already recorded", req.PawnID)
			}
		}

		customer, err := resolveCustomer(ctx, q, identity)
		if err != nil {
			return err
		}

		pawn, err := q.CreatePawn(ctx, domain.Pawn{
			ID:         req.PawnID,
			CustomerID: customer.ID,
			Deposit:    req.Deposit,
			Date:       pawnDate,
			ExpireDate: expireDate,
		})
		if err != nil {
			if isConflict(err) {
				return conflictError("pawn %d is already recorded", req.PawnID)
			}
			return err
		}

		for _, line := range req.Lines {
			product, err := resolveProduct(ctx, q, line.ProductName, decimal.NullDecimal{}, nil, actor.ID)
			if err != nil {
				return err
			}
			if err := q.CreatePawnDetail(ctx, domain.PawnDetail{
				PawnID:    pawn.ID,
				ProductID: product.ID,
				Weight:    line.PawnWeight,
				Amount:    line.PawnAmount,
				UnitPrice: line.PawnUnitPrice,
			}); err != nil {
				return err
			}
		}

		result = domain.TransactionResult{
			ID:         pawn.ID,
			CustomerID: customer.ID,
			Customer:   *customer,
			LineCount:  len(req.Lines),
		}
		return nil
	})
	if err != nil {
		return domain.TransactionResult{}, err
	}

	s.logger.Info().Int64("pawn_id", result.ID).Int64("cus_id", result.CustomerID).Int("lines", result.LineCount).Msg("pawn recorded")
	return result, nil
}

// repeatedProduct reports the first name that resolves to an earlier line's
// product. Listings show one line per product, so such a request could not be
// read back in full.
func repeatedProduct(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := normalizeProductName(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			return name, true
		}
		seen[name] = struct{}{}
	}
	return "", false
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, err
		}
	}
	return truncateDay(parsed), nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
