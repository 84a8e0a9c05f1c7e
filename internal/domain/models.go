package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Account is both a customer (role user) and a staff login (role admin).
type Account struct {
	ID           int64     `json:"cus_id"`
	Name         string    `json:"cus_name"`
	PhoneNumber  string    `json:"phone_number"`
	Address      string    `json:"address"`
	Role         string    `json:"-"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type Product struct {
	ID        int64               `json:"prod_id"`
	Name      string              `json:"prod_name"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Amount    *int64              `json:"amount"`
	UserID    int64               `json:"user_id,omitempty"`
}

type Order struct {
	ID         int64
	CustomerID int64
	Deposit    decimal.Decimal
	Date       time.Time
}

type OrderDetail struct {
	OrderID   int64
	ProductID int64
	Weight    decimal.NullDecimal
	Amount    decimal.NullDecimal
	SellPrice decimal.NullDecimal
	LaborCost decimal.NullDecimal
	BuyPrice  decimal.NullDecimal
}

type Pawn struct {
	ID         int64
	CustomerID int64
	Deposit    decimal.Decimal
	Date       time.Time
	ExpireDate time.Time
}

type PawnDetail struct {
	PawnID    int64
	ProductID int64
	Weight    decimal.NullDecimal
	Amount    decimal.NullDecimal
	UnitPrice decimal.NullDecimal
}

// Actor is the authenticated caller, taken from the bearer token.
type Actor struct {
	ID   int64
	Role string
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin
}

// CustomerIdentity is what a create request knows about its customer.
type CustomerIdentity struct {
	ID          int64
	PhoneNumber string
	Name        string
	Address     string
}

type CustomerFilter struct {
	ID          int64
	PhoneNumber string
	Name        string
}

func (f CustomerFilter) IsEmpty() bool {
	return f.ID == 0 && f.PhoneNumber == "" && f.Name == ""
}

// IDOnly reports whether the filter is a single-id lookup.
func (f CustomerFilter) IDOnly() bool {
	return f.ID != 0 && f.PhoneNumber == "" && f.Name == ""
}

type TransactionKind string

const (
	KindOrder TransactionKind = "order"
	KindPawn  TransactionKind = "pawn"
)

// TransactionRow is one flat row of a transaction header joined with one detail,
// its product and the customer account.
// ProductID is zero when the header has no detail rows.
type TransactionRow struct {
	TransactionID int64
	Customer      Account
	Deposit       decimal.NullDecimal
	Date          time.Time
	ExpireDate    *time.Time
	ProductID     int64
	ProductName   string
	Weight        decimal.NullDecimal
	Amount        decimal.NullDecimal
	UnitPrice     decimal.NullDecimal
	LaborCost     decimal.NullDecimal
	BuyPrice      decimal.NullDecimal
}

// TransactionFilter selects rows by customer or by transaction. An empty filter
// selects every transaction.
type TransactionFilter struct {
	CustomerIDs    []int64
	TransactionIDs []int64
}

type LineItem struct {
	ProductID   int64               `json:"prod_id"`
	ProductName string              `json:"prod_name"`
	Weight      decimal.NullDecimal `json:"weight"`
	Amount      decimal.NullDecimal `json:"amount"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	LaborCost   *decimal.Decimal    `json:"labor_cost,omitempty"`
	BuyPrice    *decimal.Decimal    `json:"buy_price,omitempty"`
}

type Transaction struct {
	ID         int64           `json:"id"`
	Deposit    decimal.Decimal `json:"deposit"`
	Date       string          `json:"date"`
	ExpireDate string          `json:"expire_date,omitempty"`
	Products   []LineItem      `json:"products"`
}

type CustomerTransactions struct {
	ClientInfo   Account       `json:"client_info"`
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

type ReceiptSummary struct {
	Subtotal       decimal.Decimal  `json:"subtotal"`
	TotalLaborCost *decimal.Decimal `json:"total_labor_cost,omitempty"`
	TotalCost      *decimal.Decimal `json:"total_cost,omitempty"`
	Profit         *decimal.Decimal `json:"profit,omitempty"`
	Deposit        decimal.Decimal  `json:"deposit"`
	BalanceDue     decimal.Decimal  `json:"balance_due"`
}

type Receipt struct {
	ID         int64           `json:"id"`
	Date       string          `json:"date"`
	ExpireDate string          `json:"expire_date,omitempty"`
	Deposit    decimal.Decimal `json:"deposit"`
	Client     Account         `json:"client"`
	Products   []LineItem      `json:"products"`
	Summary    ReceiptSummary  `json:"summary"`
}

type TransactionResult struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"cus_id"`
	Customer   Account `json:"client"`
	LineCount  int     `json:"line_count"`
}
