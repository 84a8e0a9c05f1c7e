package store

import (
	"context"
	"errors"

	"pawnshop/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrReferenced = errors.New("referenced by recorded transactions")
)

// Queries is every read and write the service needs. Implementations run either
// directly against the store or inside a unit of work.
type Queries interface {
	FindCustomer(ctx context.Context, id int64, phone string) (*domain.Account, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Account, error)
	CreateAccount(ctx context.Context, account domain.Account) (*domain.Account, error)
	UpdateCustomer(ctx context.Context, account domain.Account) error
	SearchCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Account, error)
	ListCustomers(ctx context.Context) ([]domain.Account, error)
	ListCustomersWith(ctx context.Context, kind domain.TransactionKind) ([]domain.Account, error)
	FindStaffByPhone(ctx context.Context, phone string) (*domain.Account, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)

	OrderExists(ctx context.Context, id int64) (bool, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	CreateOrderDetail(ctx context.Context, detail domain.OrderDetail) error
	NextOrderID(ctx context.Context) (int64, error)
	LastOrderIDs(ctx context.Context, limit int) ([]int64, error)
	ListOrderRows(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionRow, error)

	PawnExists(ctx context.Context, id int64) (bool, error)
	CreatePawn(ctx context.Context, pawn domain.Pawn) (*domain.Pawn, error)
	CreatePawnDetail(ctx context.Context, detail domain.PawnDetail) error
	NextPawnID(ctx context.Context) (int64, error)
	LastPawnIDs(ctx context.Context, limit int) ([]int64, error)
	ListPawnRows(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionRow, error)
}

// Repository is the entity store. WithinTx commits when fn returns nil and rolls
// back on any error or panic.
type Repository interface {
	Queries
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}
