package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pawnshop/backend/internal/domain"
)

// grouped is one transaction rebuilt from its flat rows.
type grouped struct {
	id       int64
	customer domain.Account
	deposit  decimal.Decimal
	date     time.Time
	expire   *time.Time
	lines    []domain.LineItem
}

// groupRows folds flat rows into transactions in first-seen order. Header fields
// come from the first row of each transaction and a product is listed at most
// once per transaction.
func groupRows(kind domain.TransactionKind, rows []domain.TransactionRow) []*grouped {
	out := make([]*grouped, 0, len(rows))
	index := make(map[int64]*grouped, len(rows))
	seen := make(map[int64]map[int64]bool, len(rows))

	for _, row := range rows {
		g, ok := index[row.TransactionID]
		if !ok {
			g = &grouped{
				id:       row.TransactionID,
				customer: row.Customer,
				deposit:  orZero(row.Deposit),
				date:     row.Date,
				expire:   row.ExpireDate,
				lines:    []domain.LineItem{},
			}
			index[row.TransactionID] = g
			seen[row.TransactionID] = map[int64]bool{}
			out = append(out, g)
		}

		if row.ProductID == 0 || seen[row.TransactionID][row.ProductID] {
			continue
		}
		seen[row.TransactionID][row.ProductID] = true
		g.lines = append(g.lines, lineItem(kind, row))
	}
	return out
}

func lineItem(kind domain.TransactionKind, row domain.TransactionRow) domain.LineItem {
	item := domain.LineItem{
		ProductID:   row.ProductID,
		ProductName: row.ProductName,
		Weight:      row.Weight,
		Amount:      row.Amount,
		UnitPrice:   row.UnitPrice,
	}
	if kind == domain.KindOrder {
		labor := orZero(row.LaborCost)
		buy := orZero(row.BuyPrice)
		item.LaborCost = &labor
		item.BuyPrice = &buy
	}
	return item
}

func (g *grouped) transaction(kind domain.TransactionKind) domain.Transaction {
	out := domain.Transaction{
		ID:       g.id,
		Deposit:  g.deposit,
		Date:     g.date.Format(domain.DateLayout),
		Products: g.lines,
	}
	if kind == domain.KindPawn && g.expire != nil {
		out.ExpireDate = g.expire.Format(domain.DateLayout)
	}
	return out
}

func (g *grouped) receipt(kind domain.TransactionKind) domain.Receipt {
	out := domain.Receipt{
		ID:       g.id,
		Deposit:  g.deposit,
		Client:   g.customer,
		Products: g.lines,
		Summary:  summarize(kind, g.lines, g.deposit),
	}
	if kind == domain.KindPawn {
		out.Date = g.date.Format(domain.DateLayout)
		if g.expire != nil {
			out.ExpireDate = g.expire.Format(domain.DateLayout)
		}
	} else {
		out.Date = g.date.Format(domain.DateTimeLayout)
	}
	return out
}

// summarize totals a receipt. Missing numbers count as zero.
func summarize(kind domain.TransactionKind, lines []domain.LineItem, deposit decimal.Decimal) domain.ReceiptSummary {
	subtotal := decimal.Zero
	labor := decimal.Zero
	cost := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(orZero(line.Amount).Mul(orZero(line.UnitPrice)))
		if line.LaborCost != nil {
			labor = labor.Add(*line.LaborCost)
			cost = cost.Add(*line.LaborCost)
		}
		if line.BuyPrice != nil {
			cost = cost.Add(*line.BuyPrice)
		}
	}

	summary := domain.ReceiptSummary{
		Subtotal:   subtotal,
		Deposit:    deposit,
		BalanceDue: subtotal.Sub(deposit),
	}
	if kind == domain.KindOrder {
		profit := subtotal.Sub(cost)
		summary.TotalLaborCost = &labor
		summary.TotalCost = &cost
		summary.Profit = &profit
		summary.BalanceDue = subtotal.Add(labor).Sub(deposit)
	}
	return summary
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

func (s *Service) listRows(ctx context.Context, kind domain.TransactionKind, filter domain.TransactionFilter) ([]domain.TransactionRow, error) {
	var (
		rows []domain.TransactionRow
		err  error
	)
	switch kind {
	case domain.KindOrder:
		rows, err = s.repo.ListOrderRows(ctx, filter)
	case domain.KindPawn:
		rows, err = s.repo.ListPawnRows(ctx, filter)
	default:
		return nil, validationError("unknown transaction kind %q", kind)
	}
	if err != nil {
		return nil, s.storageFailure("list "+string(kind)+" rows", err)
	}
	return rows, nil
}

func customerTransactions(kind domain.TransactionKind, customers []domain.Account, rows []domain.TransactionRow) []domain.CustomerTransactions {
	byCustomer := map[int64][]domain.Transaction{}
	for _, g := range groupRows(kind, rows) {
		byCustomer[g.customer.ID] = append(byCustomer[g.customer.ID], g.transaction(kind))
	}

	out := make([]domain.CustomerTransactions, 0, len(customers))
	for _, customer := range customers {
		transactions := byCustomer[customer.ID]
		if transactions == nil {
			transactions = []domain.Transaction{}
		}
		out = append(out, domain.CustomerTransactions{
			ClientInfo:   customer,
			Transactions: transactions,
			Total:        len(transactions),
		})
	}
	return out
}

// SearchTransactions finds customers by filter and nests each one's
// transactions, newest first.
func (s *Service) SearchTransactions(ctx context.Context, actor domain.Actor, kind domain.TransactionKind, filter domain.CustomerFilter) ([]domain.CustomerTransactions, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	customers, err := s.searchClients(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return []domain.CustomerTransactions{}, nil
	}

	ids := make([]int64, 0, len(customers))
	for _, customer := range customers {
		ids = append(ids, customer.ID)
	}
	rows, err := s.listRows(ctx, kind, domain.TransactionFilter{CustomerIDs: ids})
	if err != nil {
		return nil, err
	}
	return customerTransactions(kind, customers, rows), nil
}

func (s *Service) CustomerTransactions(ctx context.Context, actor domain.Actor, kind domain.TransactionKind, customerID int64) (domain.CustomerTransactions, error) {
	if err := requireStaff(actor); err != nil {
		return domain.CustomerTransactions{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		if isNotFound(err) {
			return domain.CustomerTransactions{}, notFoundError("customer %d not found", customerID)
		}
		return domain.CustomerTransactions{}, s.storageFailure("get customer", err)
	}

	rows, err := s.listRows(ctx, kind, domain.TransactionFilter{CustomerIDs: []int64{customer.ID}})
	if err != nil {
		return domain.CustomerTransactions{}, err
	}
	return customerTransactions(kind, []domain.Account{*customer}, rows)[0], nil
}

// PrintTransactions builds receipts for one transaction, or for every
// transaction when id is zero.
func (s *Service) PrintTransactions(ctx context.Context, actor domain.Actor, kind domain.TransactionKind, id int64) ([]domain.Receipt, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, validationError("%s id must be positive", kind)
	}

	filter := domain.TransactionFilter{}
	if id > 0 {
		filter.TransactionIDs = []int64{id}
	}
	rows, err := s.listRows(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	if id > 0 && len(rows) == 0 {
		return nil, notFoundError("%s %d not found", kind, id)
	}
	return receipts(kind, rows), nil
}

// LastTransactions returns receipts for the most recently recorded transactions,
// taking the highest ids as the most recent.
func (s *Service) LastTransactions(ctx context.Context, actor domain.Actor, kind domain.TransactionKind) ([]domain.Receipt, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	var (
		ids []int64
		err error
	)
	if kind == domain.KindPawn {
		ids, err = s.repo.LastPawnIDs(ctx, s.lastLimit)
	} else {
		ids, err = s.repo.LastOrderIDs(ctx, s.lastLimit)
	}
	if err != nil {
		return nil, s.storageFailure("last "+string(kind)+" ids", err)
	}
	if len(ids) == 0 {
		return []domain.Receipt{}, nil
	}

	rows, err := s.listRows(ctx, kind, domain.TransactionFilter{TransactionIDs: ids})
	if err != nil {
		return nil, err
	}
	return receipts(kind, rows), nil
}

func (s *Service) NextTransactionID(ctx context.Context, actor domain.Actor, kind domain.TransactionKind) (int64, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}

	var (
		next int64
		err  error
	)
	if kind == domain.KindPawn {
		next, err = s.repo.NextPawnID(ctx)
	} else {
		next, err = s.repo.NextOrderID(ctx)
	}
	if err != nil {
		return 0, s.storageFailure("next "+string(kind)+" id", err)
	}
	return next, nil
}

func receipts(kind domain.TransactionKind, rows []domain.TransactionRow) []domain.Receipt {
	groups := groupRows(kind, rows)
	out := make([]domain.Receipt, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.receipt(kind))
	}
	return out
}
