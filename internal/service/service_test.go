package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
	"pawnshop/backend/internal/store/memory"
)

var staff = domain.Actor{ID: 1, Role: domain.RoleAdmin}

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	return New(repo, zerolog.Nop(), 3), repo
}

func dec(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
}

func orderRequest(phone string, lines ...domain.OrderLineRequest) domain.OrderCreateRequest {
	return domain.OrderCreateRequest{
		CustomerName: "Siti",
		PhoneNumber:  phone,
		Address:      "Jl. Merdeka 1",
		Deposit:      decimal.NewFromInt(10),
		Lines:        lines,
	}
}

func pawnRequest(phone, date, expire string) domain.PawnCreateRequest {
	return domain.PawnCreateRequest{
		CustomerName:   "Andi",
		PhoneNumber:    phone,
		Deposit:        decimal.NewFromInt(100),
		PawnDate:       date,
		PawnExpireDate: expire,
		Lines: []domain.PawnLineRequest{
			{ProductName: "Ring", PawnWeight: dec("3.5"), PawnAmount: dec("1"), PawnUnitPrice: dec("500")},
		},
	}
}

func TestResolveCustomerTwiceWithSamePhoneKeepsOneAccount(t *testing.T) {
	_, repo := newTestService()
	ctx := context.Background()

	first, err := resolveCustomer(ctx, repo, domain.CustomerIdentity{PhoneNumber: "0811", Name: "Siti", Address: "Old"})
	require.NoError(t, err)
	second, err := resolveCustomer(ctx, repo, domain.CustomerIdentity{PhoneNumber: " 0811 ", Name: "Siti Aminah", Address: "New"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	customers, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, "Siti Aminah", customers[0].Name)
	require.Equal(t, "New", customers[0].Address)
}

func TestResolveCustomerNeedsIdOrPhone(t *testing.T) {
	_, repo := newTestService()

	_, err := resolveCustomer(context.Background(), repo, domain.CustomerIdentity{Name: "Nobody"})
	requireKind(t, err, KindValidation)

	_, err = resolveCustomer(context.Background(), repo, domain.CustomerIdentity{ID: 99, Name: "Ghost"})
	requireKind(t, err, KindNotFound)
}

func TestResolveProductIgnoresCase(t *testing.T) {
	_, repo := newTestService()
	ctx := context.Background()

	gold, err := resolveProduct(ctx, repo, "Gold", decimal.NullDecimal{}, nil, staff.ID)
	require.NoError(t, err)
	lower, err := resolveProduct(ctx, repo, "gold", dec("99"), nil, staff.ID)
	require.NoError(t, err)
	require.Equal(t, gold.ID, lower.ID)
	require.Equal(t, "gold", lower.Name)
	require.False(t, lower.UnitPrice.Valid)
}

func TestCreateOrderRequiresStaff(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateOrder(context.Background(), domain.Actor{ID: 7, Role: domain.RoleUser}, orderRequest("0811", domain.OrderLineRequest{ProductName: "ring"}))
	requireKind(t, err, KindPermission)
}

func TestCreateOrderRejectsEmptyLines(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.CreateOrder(context.Background(), staff, orderRequest("0811"))
	requireKind(t, err, KindValidation)

	customers, err := repo.ListCustomers(context.Background())
	require.NoError(t, err)
	require.Empty(t, customers)
}

func TestCreateOrderWithExplicitDuplicateIDWritesNothing(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	req := orderRequest("0811", domain.OrderLineRequest{ProductName: "ring", OrderAmount: dec("1"), ProductSellPrice: dec("10")})
	req.OrderID = 5
	created, err := svc.CreateOrder(ctx, staff, req)
	require.NoError(t, err)
	require.Equal(t, int64(5), created.ID)

	again := orderRequest("0899", domain.OrderLineRequest{ProductName: "necklace"})
	again.OrderID = 5
	_, err = svc.CreateOrder(ctx, staff, again)
	requireKind(t, err, KindConflict)

	_, err = repo.FindCustomer(ctx, 0, "0899")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.FindProductByName(ctx, "necklace")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateOrderRejectsRepeatedProductWithoutWriting(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, staff, orderRequest("0866",
		domain.OrderLineRequest{ProductName: "ring", OrderAmount: dec("1"), ProductSellPrice: dec("100")},
		domain.OrderLineRequest{ProductName: " Ring ", OrderAmount: dec("1"), ProductSellPrice: dec("250")},
	))
	requireKind(t, err, KindValidation)

	_, err = repo.FindCustomer(ctx, 0, "0866")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.FindProductByName(ctx, "ring")
	require.ErrorIs(t, err, store.ErrNotFound)

	pawn := pawnRequest("0866", "2026-01-10", "2026-02-10")
	pawn.Lines = append(pawn.Lines, domain.PawnLineRequest{ProductName: "RING", PawnAmount: dec("1"), PawnUnitPrice: dec("50")})
	_, err = svc.CreatePawn(ctx, staff, pawn)
	requireKind(t, err, KindValidation)

	next, err := repo.NextPawnID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), next)
}

func TestPrintOrderSummaryCountsEveryProduct(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, staff, orderRequest("0877",
		domain.OrderLineRequest{ProductName: "ring", OrderAmount: dec("1"), ProductSellPrice: dec("100")},
		domain.OrderLineRequest{ProductName: "bracelet", OrderAmount: dec("1"), ProductSellPrice: dec("250")},
	))
	require.NoError(t, err)
	require.Equal(t, 2, created.LineCount)

	printed, err := svc.PrintTransactions(ctx, staff, domain.KindOrder, created.ID)
	require.NoError(t, err)
	require.Len(t, printed, 1)
	require.Len(t, printed[0].Products, 2)
	require.True(t, printed[0].Summary.Subtotal.Equal(decimal.NewFromInt(350)), printed[0].Summary.Subtotal.String())
	require.True(t, printed[0].Summary.BalanceDue.Equal(decimal.NewFromInt(340)), printed[0].Summary.BalanceDue.String())
}

func TestCreatePawnWithDateAfterExpiryWritesNothing(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.CreatePawn(ctx, staff, pawnRequest("0822", "2026-05-02", "2026-05-01"))
	requireKind(t, err, KindValidation)

	customers, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	require.Empty(t, customers)
	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	require.Empty(t, products)
	next, err := repo.NextPawnID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), next)
}

func TestCreatePawnWithExistingIDFailsWithConflict(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	req := pawnRequest("0822", "2026-05-01", "2026-08-01")
	req.PawnID = 40
	_, err := svc.CreatePawn(ctx, staff, req)
	require.NoError(t, err)

	dup := pawnRequest("0833", "2026-05-01", "2026-08-01")
	dup.PawnID = 40
	_, err = svc.CreatePawn(ctx, staff, dup)
	requireKind(t, err, KindConflict)

	rows, err := repo.ListPawnRows(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, err = repo.FindCustomer(ctx, 0, "0833")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCustomerTransactionsGroupsLinesPerTransaction(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, staff, orderRequest("0811",
		domain.OrderLineRequest{ProductName: "ring"},
		domain.OrderLineRequest{ProductName: "chain"},
	))
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, staff, orderRequest("0811",
		domain.OrderLineRequest{ProductName: "bangle"},
		domain.OrderLineRequest{ProductName: "Bangle"},
		domain.OrderLineRequest{ProductName: "ring"},
	))
	require.NoError(t, err)

	result, err := svc.CustomerTransactions(ctx, staff, domain.KindOrder, first.CustomerID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Len(t, result.Transactions, 2)

	require.Equal(t, second.ID, result.Transactions[0].ID)
	require.Equal(t, []string{"bangle", "ring"}, productNames(result.Transactions[0].Products))
	require.Equal(t, first.ID, result.Transactions[1].ID)
	require.Equal(t, []string{"ring", "chain"}, productNames(result.Transactions[1].Products))
}

func TestCustomerTransactionsUnknownCustomer(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CustomerTransactions(context.Background(), staff, domain.KindPawn, 404)
	requireKind(t, err, KindNotFound)
}

func TestGroupRowsKeepsFirstSeenHeader(t *testing.T) {
	rows := []domain.TransactionRow{
		{TransactionID: 2, Deposit: dec("5"), ProductID: 1, ProductName: "ring"},
		{TransactionID: 2, Deposit: dec("9"), ProductID: 1, ProductName: "ring"},
		{TransactionID: 2, Deposit: dec("9"), ProductID: 3, ProductName: "chain"},
		{TransactionID: 1, Deposit: dec("7")},
	}

	groups := groupRows(domain.KindPawn, rows)
	require.Len(t, groups, 2)
	require.True(t, groups[0].deposit.Equal(decimal.NewFromInt(5)))
	require.Len(t, groups[0].lines, 2)
	require.Empty(t, groups[1].lines)
	require.NotNil(t, groups[1].lines)
}

func TestPrintTransactionSummary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreatePawn(ctx, staff, domain.PawnCreateRequest{
		CustomerName:   "Rina",
		PhoneNumber:    "0844",
		Deposit:        decimal.NewFromInt(10),
		PawnDate:       "2026-01-10",
		PawnExpireDate: "2026-04-10",
		Lines: []domain.PawnLineRequest{
			{ProductName: "ring", PawnAmount: dec("2"), PawnUnitPrice: dec("10")},
			{ProductName: "chain", PawnAmount: dec("1"), PawnUnitPrice: dec("5")},
		},
	})
	require.NoError(t, err)

	printed, err := svc.PrintTransactions(ctx, staff, domain.KindPawn, created.ID)
	require.NoError(t, err)
	require.Len(t, printed, 1)

	receipt := printed[0]
	require.Equal(t, "2026-01-10", receipt.Date)
	require.Equal(t, "2026-04-10", receipt.ExpireDate)
	require.True(t, receipt.Summary.Subtotal.Equal(decimal.NewFromInt(25)), receipt.Summary.Subtotal.String())
	require.True(t, receipt.Summary.BalanceDue.Equal(decimal.NewFromInt(15)), receipt.Summary.BalanceDue.String())
	require.Nil(t, receipt.Summary.Profit)
}

func TestPrintOrderSummaryTreatsNullAsZero(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, staff, orderRequest("0855",
		domain.OrderLineRequest{ProductName: "ring", OrderAmount: dec("2"), ProductSellPrice: dec("10"), ProductLaborCost: dec("3"), ProductBuyPrice: dec("6")},
		domain.OrderLineRequest{ProductName: "chain", OrderAmount: dec("1"), ProductSellPrice: dec("5")},
		domain.OrderLineRequest{ProductName: "pin"},
	))
	require.NoError(t, err)

	printed, err := svc.PrintTransactions(ctx, staff, domain.KindOrder, created.ID)
	require.NoError(t, err)
	require.Len(t, printed, 1)

	summary := printed[0].Summary
	require.True(t, summary.Subtotal.Equal(decimal.NewFromInt(25)))
	require.True(t, summary.TotalLaborCost.Equal(decimal.NewFromInt(3)))
	require.True(t, summary.TotalCost.Equal(decimal.NewFromInt(9)))
	require.True(t, summary.Profit.Equal(decimal.NewFromInt(16)))
	require.True(t, summary.BalanceDue.Equal(decimal.NewFromInt(18)))
	require.Len(t, printed[0].Date, len(domain.DateTimeLayout))
}

func TestPrintUnknownTransaction(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.PrintTransactions(context.Background(), staff, domain.KindOrder, 12)
	requireKind(t, err, KindNotFound)

	all, err := svc.PrintTransactions(context.Background(), staff, domain.KindOrder, 0)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestLastTransactionsReturnsHighestIDsDescending(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateOrder(ctx, staff, orderRequest("0866", domain.OrderLineRequest{ProductName: "ring"}))
		require.NoError(t, err)
	}

	last, err := svc.LastTransactions(ctx, staff, domain.KindOrder)
	require.NoError(t, err)
	require.Len(t, last, 3)
	require.Equal(t, []int64{5, 4, 3}, []int64{last[0].ID, last[1].ID, last[2].ID})
	require.Equal(t, "0866", last[0].Client.PhoneNumber)
}

func TestSearchClientsWithEmptyFilterReturnsNothing(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateClient(ctx, staff, domain.ClientCreateRequest{Name: "Dewi", PhoneNumber: "0877"})
	require.NoError(t, err)

	found, err := svc.SearchClients(ctx, staff, domain.CustomerFilter{})
	require.NoError(t, err)
	require.Empty(t, found)

	found, err = svc.SearchClients(ctx, staff, domain.CustomerFilter{Name: "dewi"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = svc.SearchClients(ctx, staff, domain.CustomerFilter{ID: 999})
	requireKind(t, err, KindNotFound)

	found, err = svc.SearchClients(ctx, staff, domain.CustomerFilter{ID: 999, Name: "dewi"})
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestCreateClientRejectsDuplicatePhone(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateClient(ctx, staff, domain.ClientCreateRequest{Name: "Dewi", PhoneNumber: "0877"})
	require.NoError(t, err)
	_, err = svc.CreateClient(ctx, staff, domain.ClientCreateRequest{Name: "Other", PhoneNumber: "0877"})
	requireKind(t, err, KindConflict)
}

func TestDeleteProductIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	deleted, err := svc.DeleteProduct(ctx, staff, 123)
	require.NoError(t, err)
	require.False(t, deleted)

	product, err := svc.CreateProduct(ctx, staff, domain.ProductCreateRequest{Name: " Bracelet ", UnitPrice: dec("12.50")})
	require.NoError(t, err)
	require.Equal(t, "bracelet", product.Name)

	deleted, err = svc.DeleteProduct(ctx, staff, product.ID)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestDeleteReferencedProductIsConflict(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, staff, orderRequest("0888", domain.OrderLineRequest{ProductName: "ring"}))
	require.NoError(t, err)
	product, err := repo.FindProductByName(ctx, "ring")
	require.NoError(t, err)

	_, err = svc.DeleteProduct(ctx, staff, product.ID)
	requireKind(t, err, KindConflict)
}

func TestUpdateProductByNameKeepsOmittedFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	amount := int64(4)
	_, err := svc.CreateProduct(ctx, staff, domain.ProductCreateRequest{Name: "anklet", UnitPrice: dec("20"), Amount: &amount})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, staff, domain.ProductUpdateRequest{Name: "ANKLET", UnitPrice: dec("25")})
	require.NoError(t, err)
	require.True(t, updated.UnitPrice.Decimal.Equal(decimal.NewFromInt(25)))
	require.NotNil(t, updated.Amount)
	require.Equal(t, int64(4), *updated.Amount)

	_, err = svc.UpdateProduct(ctx, staff, domain.ProductUpdateRequest{})
	requireKind(t, err, KindValidation)
	_, err = svc.UpdateProduct(ctx, staff, domain.ProductUpdateRequest{ID: 77})
	requireKind(t, err, KindNotFound)
}

func TestNextTransactionIDAndCustomersWith(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	next, err := svc.NextTransactionID(ctx, staff, domain.KindPawn)
	require.NoError(t, err)
	require.Equal(t, int64(1), next)

	_, err = svc.CreatePawn(ctx, staff, pawnRequest("0899", "2026-02-01", "2026-02-01"))
	require.NoError(t, err)
	_, err = svc.CreateClient(ctx, staff, domain.ClientCreateRequest{Name: "Idle", PhoneNumber: "0800"})
	require.NoError(t, err)

	next, err = svc.NextTransactionID(ctx, staff, domain.KindPawn)
	require.NoError(t, err)
	require.Equal(t, int64(2), next)

	withPawns, err := svc.CustomersWithTransactions(ctx, staff, domain.KindPawn)
	require.NoError(t, err)
	require.Len(t, withPawns, 1)
	require.Equal(t, "0899", withPawns[0].PhoneNumber)

	withOrders, err := svc.CustomersWithTransactions(ctx, staff, domain.KindOrder)
	require.NoError(t, err)
	require.Empty(t, withOrders)
}

func productNames(items []domain.LineItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.ProductName)
	}
	return names
}
