package domain

import "github.com/shopspring/decimal"

type LoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type ClientCreateRequest struct {
	Name        string `json:"cus_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

type ProductCreateRequest struct {
	Name      string              `json:"prod_name"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Amount    *int64              `json:"amount,omitempty"`
}

type ProductUpdateRequest struct {
	ID        int64               `json:"prod_id,omitempty"`
	Name      string              `json:"prod_name,omitempty"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Amount    *int64              `json:"amount,omitempty"`
}

type OrderLineRequest struct {
	ProductName      string              `json:"prod_name"`
	OrderWeight      decimal.NullDecimal `json:"order_weight"`
	OrderAmount      decimal.NullDecimal `json:"order_amount"`
	ProductSellPrice decimal.NullDecimal `json:"product_sell_price"`
	ProductLaborCost decimal.NullDecimal `json:"product_labor_cost"`
	ProductBuyPrice  decimal.NullDecimal `json:"product_buy_price"`
}

type OrderCreateRequest struct {
	OrderID      int64              `json:"order_id,omitempty"`
	CustomerID   int64              `json:"cus_id,omitempty"`
	CustomerName string             `json:"cus_name"`
	PhoneNumber  string             `json:"phone_number"`
	Address      string             `json:"address"`
	Deposit      decimal.Decimal    `json:"order_deposit"`
	Lines        []OrderLineRequest `json:"order_product_detail"`
}

type PawnLineRequest struct {
	ProductName   string              `json:"prod_name"`
	PawnWeight    decimal.NullDecimal `json:"pawn_weight"`
	PawnAmount    decimal.NullDecimal `json:"pawn_amount"`
	PawnUnitPrice decimal.NullDecimal `json:"pawn_unit_price"`
}

type PawnCreateRequest struct {
	PawnID         int64             `json:"pawn_id,omitempty"`
	CustomerID     int64             `json:"cus_id,omitempty"`
	CustomerName   string            `json:"cus_name"`
	PhoneNumber    string            `json:"phone_number"`
	Address        string            `json:"address"`
	Deposit        decimal.Decimal   `json:"pawn_deposit"`
	PawnDate       string            `json:"pawn_date"`
	PawnExpireDate string            `json:"pawn_expire_date"`
	Lines          []PawnLineRequest `json:"pawn_product_detail"`
}

type NextIDResponse struct {
	NextID int64 `json:"next_id"`
}
