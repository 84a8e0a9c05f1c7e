package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

// dataset is everything the store holds. WithinTx works on a clone and swaps it
// in only when the callback succeeds.
type dataset struct {
	accounts     map[int64]domain.Account
	products     map[int64]domain.Product
	orders       map[int64]domain.Order
	orderDetails []domain.OrderDetail
	pawns        map[int64]domain.Pawn
	pawnDetails  []domain.PawnDetail

	nextAccountID int64
	nextProductID int64
	nextOrderID   int64
	nextPawnID    int64
}

func newDataset() *dataset {
	return &dataset{
		accounts:      map[int64]domain.Account{},
		products:      map[int64]domain.Product{},
		orders:        map[int64]domain.Order{},
		pawns:         map[int64]domain.Pawn{},
		nextAccountID: 1,
		nextProductID: 1,
		nextOrderID:   1,
		nextPawnID:    1,
	}
}

func (d *dataset) clone() *dataset {
	out := *d
	out.accounts = make(map[int64]domain.Account, len(d.accounts))
	for k, v := range d.accounts {
		out.accounts[k] = v
	}
	out.products = make(map[int64]domain.Product, len(d.products))
	for k, v := range d.products {
		if v.Amount != nil {
			amount := *v.Amount
			v.Amount = &amount
		}
		out.products[k] = v
	}
	out.orders = make(map[int64]domain.Order, len(d.orders))
	for k, v := range d.orders {
		out.orders[k] = v
	}
	out.pawns = make(map[int64]domain.Pawn, len(d.pawns))
	for k, v := range d.pawns {
		out.pawns[k] = v
	}
	out.orderDetails = slices.Clone(d.orderDetails)
	out.pawnDetails = slices.Clone(d.pawnDetails)
	return &out
}

type Store struct {
	mu   sync.RWMutex
	data *dataset
}

func New() *Store {
	return &Store{data: newDataset()}
}

// NewSeeded returns a store holding one staff account for dev mode. The login is
// read from SEED_ADMIN_PHONE and SEED_ADMIN_PASSWORD; dev defaults are used with
// a warning when they are unset. Production runs on PostgreSQL.
func NewSeeded() *Store {
	phone := envOr("SEED_ADMIN_PHONE", "0800000000")
	password := envOr("SEED_ADMIN_PASSWORD", "admin12345")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		zlog.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PHONE and SEED_ADMIN_PASSWORD to override")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zlog.Fatal().Err(err).Str("component", "memory-store").Msg("failed to hash seed password")
	}

	s := New()
	_, _ = s.data.createAccount(domain.Account{
		Name:         "Admin",
		PhoneNumber:  phone,
		Role:         domain.RoleAdmin,
		PasswordHash: string(hash),
	})
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) WithinTx(_ context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &Store{data: s.data.clone()}
	if err := fn(work); err != nil {
		return err
	}
	s.data = work.data
	return nil
}

func (s *Store) read(fn func(d *dataset)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *dataset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func (s *Store) FindCustomer(_ context.Context, id int64, phone string) (out *domain.Account, err error) {
	s.read(func(d *dataset) { out, err = d.findCustomer(id, phone) })
	return
}

func (s *Store) GetCustomer(_ context.Context, id int64) (out *domain.Account, err error) {
	s.read(func(d *dataset) { out, err = d.getCustomer(id) })
	return
}

func (s *Store) CreateAccount(_ context.Context, account domain.Account) (out *domain.Account, err error) {
	s.write(func(d *dataset) { out, err = d.createAccount(account) })
	return
}

func (s *Store) UpdateCustomer(_ context.Context, account domain.Account) (err error) {
	s.write(func(d *dataset) { err = d.updateCustomer(account) })
	return
}

func (s *Store) SearchCustomers(_ context.Context, filter domain.CustomerFilter) (out []domain.Account, err error) {
	s.read(func(d *dataset) { out = d.searchCustomers(filter) })
	return
}

func (s *Store) ListCustomers(_ context.Context) (out []domain.Account, err error) {
	s.read(func(d *dataset) { out = d.searchCustomers(domain.CustomerFilter{}) })
	return
}

func (s *Store) ListCustomersWith(_ context.Context, kind domain.TransactionKind) (out []domain.Account, err error) {
	s.read(func(d *dataset) { out = d.customersWith(kind) })
	return
}

func (s *Store) FindStaffByPhone(_ context.Context, phone string) (out *domain.Account, err error) {
	s.read(func(d *dataset) { out, err = d.findStaffByPhone(phone) })
	return
}

func (s *Store) ListProducts(_ context.Context) (out []domain.Product, err error) {
	s.read(func(d *dataset) { out = d.listProducts() })
	return
}

func (s *Store) GetProduct(_ context.Context, id int64) (out *domain.Product, err error) {
	s.read(func(d *dataset) { out, err = d.getProduct(id) })
	return
}

func (s *Store) FindProductByName(_ context.Context, name string) (out *domain.Product, err error) {
	s.read(func(d *dataset) { out, err = d.findProductByName(name) })
	return
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (out *domain.Product, err error) {
	s.write(func(d *dataset) { out, err = d.createProduct(product) })
	return
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (out *domain.Product, err error) {
	s.write(func(d *dataset) { out, err = d.updateProduct(product) })
	return
}

func (s *Store) DeleteProduct(_ context.Context, id int64) (deleted bool, err error) {
	s.write(func(d *dataset) { deleted, err = d.deleteProduct(id) })
	return
}

func (s *Store) OrderExists(_ context.Context, id int64) (found bool, err error) {
	s.read(func(d *dataset) { _, found = d.orders[id] })
	return
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (out *domain.Order, err error) {
	s.write(func(d *dataset) { out, err = d.createOrder(order) })
	return
}

func (s *Store) CreateOrderDetail(_ context.Context, detail domain.OrderDetail) (err error) {
	s.write(func(d *dataset) { err = d.createOrderDetail(detail) })
	return
}

func (s *Store) NextOrderID(_ context.Context) (next int64, err error) {
	s.read(func(d *dataset) { next = maxKey(d.orders) + 1 })
	return
}

func (s *Store) LastOrderIDs(_ context.Context, limit int) (out []int64, err error) {
	s.read(func(d *dataset) { out = lastKeys(d.orders, limit) })
	return
}

func (s *Store) ListOrderRows(_ context.Context, filter domain.TransactionFilter) (out []domain.TransactionRow, err error) {
	s.read(func(d *dataset) { out = d.orderRows(filter) })
	return
}

func (s *Store) PawnExists(_ context.Context, id int64) (found bool, err error) {
	s.read(func(d *dataset) { _, found = d.pawns[id] })
	return
}

func (s *Store) CreatePawn(_ context.Context, pawn domain.Pawn) (out *domain.Pawn, err error) {
	s.write(func(d *dataset) { out, err = d.createPawn(pawn) })
	return
}

func (s *Store) CreatePawnDetail(_ context.Context, detail domain.PawnDetail) (err error) {
	s.write(func(d *dataset) { err = d.createPawnDetail(detail) })
	return
}

func (s *Store) NextPawnID(_ context.Context) (next int64, err error) {
	s.read(func(d *dataset) { next = maxKey(d.pawns) + 1 })
	return
}

func (s *Store) LastPawnIDs(_ context.Context, limit int) (out []int64, err error) {
	s.read(func(d *dataset) { out = lastKeys(d.pawns, limit) })
	return
}

func (s *Store) ListPawnRows(_ context.Context, filter domain.TransactionFilter) (out []domain.TransactionRow, err error) {
	s.read(func(d *dataset) { out = d.pawnRows(filter) })
	return
}

func (d *dataset) findCustomer(id int64, phone string) (*domain.Account, error) {
	if account, ok := d.accounts[id]; ok && account.Role == domain.RoleUser {
		return &account, nil
	}
	if phone == "" {
		return nil, store.ErrNotFound
	}
	for _, account := range d.sortedAccounts() {
		if account.Role == domain.RoleUser && account.PhoneNumber == phone {
			return &account, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *dataset) getCustomer(id int64) (*domain.Account, error) {
	account, ok := d.accounts[id]
	if !ok || account.Role != domain.RoleUser {
		return nil, store.ErrNotFound
	}
	return &account, nil
}

func (d *dataset) createAccount(account domain.Account) (*domain.Account, error) {
	if account.Role == "" {
		account.Role = domain.RoleUser
	}
	if account.PhoneNumber != "" {
		for _, existing := range d.accounts {
			if existing.Role == account.Role && existing.PhoneNumber == account.PhoneNumber {
				return nil, store.ErrConflict
			}
		}
	}
	account.ID = d.nextAccountID
	account.CreatedAt = time.Now().UTC()
	d.nextAccountID++
	d.accounts[account.ID] = account
	return &account, nil
}

func (d *dataset) updateCustomer(account domain.Account) error {
	existing, ok := d.accounts[account.ID]
	if !ok || existing.Role != domain.RoleUser {
		return store.ErrNotFound
	}
	existing.Name = account.Name
	existing.Address = account.Address
	d.accounts[account.ID] = existing
	return nil
}

func (d *dataset) searchCustomers(filter domain.CustomerFilter) []domain.Account {
	out := make([]domain.Account, 0, 8)
	for _, account := range d.sortedAccounts() {
		if account.Role != domain.RoleUser {
			continue
		}
		if filter.ID != 0 && account.ID != filter.ID {
			continue
		}
		if filter.PhoneNumber != "" && account.PhoneNumber != filter.PhoneNumber {
			continue
		}
		if filter.Name != "" && !strings.EqualFold(account.Name, filter.Name) {
			continue
		}
		out = append(out, account)
	}
	return out
}

func (d *dataset) customersWith(kind domain.TransactionKind) []domain.Account {
	owners := map[int64]bool{}
	if kind == domain.KindPawn {
		for _, pawn := range d.pawns {
			owners[pawn.CustomerID] = true
		}
	} else {
		for _, order := range d.orders {
			owners[order.CustomerID] = true
		}
	}

	out := make([]domain.Account, 0, len(owners))
	for _, account := range d.sortedAccounts() {
		if account.Role == domain.RoleUser && owners[account.ID] {
			out = append(out, account)
		}
	}
	return out
}

func (d *dataset) findStaffByPhone(phone string) (*domain.Account, error) {
	for _, account := range d.accounts {
		if account.Role == domain.RoleAdmin && account.PhoneNumber == phone {
			return &account, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *dataset) sortedAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(d.accounts))
	for _, id := range sortedKeys(d.accounts) {
		out = append(out, d.accounts[id])
	}
	return out
}

func (d *dataset) listProducts() []domain.Product {
	out := make([]domain.Product, 0, len(d.products))
	for _, id := range sortedKeys(d.products) {
		out = append(out, d.products[id])
	}
	return out
}

func (d *dataset) getProduct(id int64) (*domain.Product, error) {
	product, ok := d.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (d *dataset) findProductByName(name string) (*domain.Product, error) {
	for _, product := range d.products {
		if strings.EqualFold(product.Name, name) {
			return &product, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *dataset) createProduct(product domain.Product) (*domain.Product, error) {
	if _, err := d.findProductByName(product.Name); err == nil {
		return nil, store.ErrConflict
	}
	product.ID = d.nextProductID
	d.nextProductID++
	d.products[product.ID] = product
	return &product, nil
}

func (d *dataset) updateProduct(product domain.Product) (*domain.Product, error) {
	existing, ok := d.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.UnitPrice = product.UnitPrice
	existing.Amount = product.Amount
	d.products[product.ID] = existing
	return &existing, nil
}

func (d *dataset) deleteProduct(id int64) (bool, error) {
	if _, ok := d.products[id]; !ok {
		return false, nil
	}
	for _, detail := range d.orderDetails {
		if detail.ProductID == id {
			return false, store.ErrReferenced
		}
	}
	for _, detail := range d.pawnDetails {
		if detail.ProductID == id {
			return false, store.ErrReferenced
		}
	}
	delete(d.products, id)
	return true, nil
}

func (d *dataset) createOrder(order domain.Order) (*domain.Order, error) {
	if _, ok := d.accounts[order.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}
	if order.ID > 0 {
		if _, exists := d.orders[order.ID]; exists {
			return nil, store.ErrConflict
		}
	} else {
		order.ID = d.nextOrderID
	}
	if order.ID >= d.nextOrderID {
		d.nextOrderID = order.ID + 1
	}
	order.Date = time.Now().UTC()
	d.orders[order.ID] = order
	return &order, nil
}

func (d *dataset) createOrderDetail(detail domain.OrderDetail) error {
	if _, ok := d.orders[detail.OrderID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := d.products[detail.ProductID]; !ok {
		return store.ErrNotFound
	}
	d.orderDetails = append(d.orderDetails, detail)
	return nil
}

func (d *dataset) createPawn(pawn domain.Pawn) (*domain.Pawn, error) {
	if _, ok := d.accounts[pawn.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}
	if pawn.ID > 0 {
		if _, exists := d.pawns[pawn.ID]; exists {
			return nil, store.ErrConflict
		}
	} else {
		pawn.ID = d.nextPawnID
	}
	if pawn.ID >= d.nextPawnID {
		d.nextPawnID = pawn.ID + 1
	}
	pawn.Date = dateOnly(pawn.Date)
	pawn.ExpireDate = dateOnly(pawn.ExpireDate)
	d.pawns[pawn.ID] = pawn
	return &pawn, nil
}

func (d *dataset) createPawnDetail(detail domain.PawnDetail) error {
	if _, ok := d.pawns[detail.PawnID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := d.products[detail.ProductID]; !ok {
		return store.ErrNotFound
	}
	d.pawnDetails = append(d.pawnDetails, detail)
	return nil
}

func (d *dataset) orderRows(filter domain.TransactionFilter) []domain.TransactionRow {
	out := make([]domain.TransactionRow, 0, 16)
	for _, id := range descendingKeys(d.orders) {
		order := d.orders[id]
		if !matches(filter, order.ID, order.CustomerID) {
			continue
		}
		header := domain.TransactionRow{
			TransactionID: order.ID,
			Customer:      d.accounts[order.CustomerID],
			Deposit:       nullDecimal(order.Deposit),
			Date:          order.Date,
		}
		lines := 0
		for _, detail := range d.orderDetails {
			if detail.OrderID != order.ID {
				continue
			}
			row := header
			row.ProductID = detail.ProductID
			row.ProductName = d.products[detail.ProductID].Name
			row.Weight = detail.Weight
			row.Amount = detail.Amount
			row.UnitPrice = detail.SellPrice
			row.LaborCost = detail.LaborCost
			row.BuyPrice = detail.BuyPrice
			out = append(out, row)
			lines++
		}
		if lines == 0 {
			out = append(out, header)
		}
	}
	return out
}

func (d *dataset) pawnRows(filter domain.TransactionFilter) []domain.TransactionRow {
	out := make([]domain.TransactionRow, 0, 16)
	for _, id := range descendingKeys(d.pawns) {
		pawn := d.pawns[id]
		if !matches(filter, pawn.ID, pawn.CustomerID) {
			continue
		}
		expire := pawn.ExpireDate
		header := domain.TransactionRow{
			TransactionID: pawn.ID,
			Customer:      d.accounts[pawn.CustomerID],
			Deposit:       nullDecimal(pawn.Deposit),
			Date:          pawn.Date,
			ExpireDate:    &expire,
		}
		lines := 0
		for _, detail := range d.pawnDetails {
			if detail.PawnID != pawn.ID {
				continue
			}
			row := header
			row.ProductID = detail.ProductID
			row.ProductName = d.products[detail.ProductID].Name
			row.Weight = detail.Weight
			row.Amount = detail.Amount
			row.UnitPrice = detail.UnitPrice
			out = append(out, row)
			lines++
		}
		if lines == 0 {
			out = append(out, header)
		}
	}
	return out
}

func matches(filter domain.TransactionFilter, transactionID, customerID int64) bool {
	if len(filter.CustomerIDs) > 0 && !slices.Contains(filter.CustomerIDs, customerID) {
		return false
	}
	if len(filter.TransactionIDs) > 0 && !slices.Contains(filter.TransactionIDs, transactionID) {
		return false
	}
	return true
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func descendingKeys[V any](m map[int64]V) []int64 {
	keys := sortedKeys(m)
	slices.Reverse(keys)
	return keys
}

func maxKey[V any](m map[int64]V) int64 {
	var out int64
	for k := range m {
		out = max(out, k)
	}
	return out
}

func lastKeys[V any](m map[int64]V, limit int) []int64 {
	if limit < 1 {
		limit = 3
	}
	keys := descendingKeys(m)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func nullDecimal(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(v)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
