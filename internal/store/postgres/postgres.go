package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	*queries
	db *sql.DB
}

type queries struct {
	db dbtx
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{queries: &queries{db: db}, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithinTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const accountColumns = `cus_id, cus_name, COALESCE(phone_number, ''), address, role, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(&account.ID, &account.Name, &account.PhoneNumber, &account.Address, &account.Role, &account.CreatedAt); err != nil {
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func (q *queries) FindCustomer(ctx context.Context, id int64, phone string) (*domain.Account, error) {
	account, err := scanAccount(q.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'user' AND (cus_id = $1 OR ($2 <> '' AND phone_number = $2))
		ORDER BY (cus_id = $1) DESC
		LIMIT 1
	`, id, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func (q *queries) GetCustomer(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := scanAccount(q.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'user' AND cus_id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func (q *queries) CreateAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	if account.Role == "" {
		account.Role = domain.RoleUser
	}
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO accounts (cus_name, phone_number, address, role, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING cus_id, created_at
	`, account.Name, nullIfEmpty(account.PhoneNumber), account.Address, account.Role, nullIfEmpty(account.PasswordHash)).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func (q *queries) UpdateCustomer(ctx context.Context, account domain.Account) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts
		SET cus_name = $2, address = $3
		WHERE cus_id = $1 AND role = 'user'
	`, account.ID, account.Name, account.Address)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) SearchCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Account, error) {
	conditions := []string{"role = 'user'"}
	args := make([]any, 0, 3)
	if filter.ID != 0 {
		args = append(args, filter.ID)
		conditions = append(conditions, fmt.Sprintf("cus_id = $%d", len(args)))
	}
	if filter.PhoneNumber != "" {
		args = append(args, filter.PhoneNumber)
		conditions = append(conditions, fmt.Sprintf("phone_number = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		conditions = append(conditions, fmt.Sprintf("lower(cus_name) = lower($%d)", len(args)))
	}

	return q.listAccounts(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE `+strings.Join(conditions, " AND ")+`
		ORDER BY cus_id ASC
	`, args...)
}

func (q *queries) ListCustomers(ctx context.Context) ([]domain.Account, error) {
	return q.listAccounts(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'user'
		ORDER BY cus_id ASC
	`)
}

func (q *queries) ListCustomersWith(ctx context.Context, kind domain.TransactionKind) ([]domain.Account, error) {
	table := "orders"
	if kind == domain.KindPawn {
		table = "pawns"
	}
	return q.listAccounts(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		WHERE a.role = 'user' AND EXISTS (SELECT 1 FROM `+table+` t WHERE t.cus_id = a.cus_id)
		ORDER BY a.cus_id ASC
	`)
}

func (q *queries) listAccounts(ctx context.Context, query string, args ...any) ([]domain.Account, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, 16)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (q *queries) FindStaffByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	var account domain.Account
	var passwordHash sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT cus_id, cus_name, phone_number, address, role, password_hash, created_at
		FROM accounts
		WHERE role = 'admin' AND phone_number = $1
	`, phone).Scan(&account.ID, &account.Name, &account.PhoneNumber, &account.Address, &account.Role, &passwordHash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	account.PasswordHash = passwordHash.String
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

const productColumns = `prod_id, prod_name, unit_price, amount, user_id`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var product domain.Product
	var amount sql.NullInt64
	var userID sql.NullInt64
	if err := row.Scan(&product.ID, &product.Name, &product.UnitPrice, &amount, &userID); err != nil {
		return nil, err
	}
	if amount.Valid {
		v := amount.Int64
		product.Amount = &v
	}
	product.UserID = userID.Int64
	return &product, nil
}

func (q *queries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY prod_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (q *queries) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := scanProduct(q.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE prod_id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (q *queries) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	product, err := scanProduct(q.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE lower(prod_name) = lower($1)
	`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (q *queries) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, fmt.Errorf("product name required")
	}
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO products (prod_name, unit_price, amount, user_id, created_at)
		VALUES ($1,$2,$3,$4,now())
		RETURNING prod_id
	`, product.Name, product.UnitPrice, product.Amount, nullIfZero(product.UserID)).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &product, nil
}

func (q *queries) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := scanProduct(q.db.QueryRowContext(ctx, `
		UPDATE products
		SET unit_price = $2, amount = $3
		WHERE prod_id = $1
		RETURNING `+productColumns+`
	`, product.ID, product.UnitPrice, product.Amount))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (q *queries) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM products WHERE prod_id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, store.ErrReferenced
		}
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (q *queries) OrderExists(ctx context.Context, id int64) (bool, error) {
	return q.exists(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, id)
}

func (q *queries) PawnExists(ctx context.Context, id int64) (bool, error) {
	return q.exists(ctx, `SELECT EXISTS (SELECT 1 FROM pawns WHERE pawn_id = $1)`, id)
}

func (q *queries) exists(ctx context.Context, query string, id int64) (bool, error) {
	var found bool
	if err := q.db.QueryRowContext(ctx, query, id).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (q *queries) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	var err error
	if order.ID > 0 {
		err = q.db.QueryRowContext(ctx, `
			INSERT INTO orders (order_id, cus_id, order_deposit, order_date)
			VALUES ($1,$2,$3,now())
			RETURNING order_id, order_date
		`, order.ID, order.CustomerID, order.Deposit).Scan(&order.ID, &order.Date)
		if err == nil {
			err = q.syncSequence(ctx, "orders", "order_id")
		}
	} else {
		err = q.db.QueryRowContext(ctx, `
			INSERT INTO orders (cus_id, order_deposit, order_date)
			VALUES ($1,$2,now())
			RETURNING order_id, order_date
		`, order.CustomerID, order.Deposit).Scan(&order.ID, &order.Date)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	order.Date = order.Date.UTC()
	return &order, nil
}

func (q *queries) CreateOrderDetail(ctx context.Context, detail domain.OrderDetail) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO order_details (order_id, prod_id, order_weight, order_amount, product_sell_price, product_labor_cost, product_buy_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, detail.OrderID, detail.ProductID, detail.Weight, detail.Amount, detail.SellPrice, detail.LaborCost, detail.BuyPrice)
	return err
}

func (q *queries) NextOrderID(ctx context.Context) (int64, error) {
	return q.nextID(ctx, `SELECT COALESCE(MAX(order_id), 0) + 1 FROM orders`)
}

func (q *queries) LastOrderIDs(ctx context.Context, limit int) ([]int64, error) {
	return q.lastIDs(ctx, `SELECT order_id FROM orders ORDER BY order_id DESC LIMIT $1`, limit)
}

func (q *queries) ListOrderRows(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionRow, error) {
	return q.listRows(ctx, `
		SELECT t.order_id, a.cus_id, a.cus_name, COALESCE(a.phone_number, ''), a.address,
			t.order_deposit, t.order_date, NULL::date,
			COALESCE(p.prod_id, 0), COALESCE(p.prod_name, ''),
			d.order_weight, d.order_amount, d.product_sell_price, d.product_labor_cost, d.product_buy_price
		FROM orders t
		JOIN accounts a ON a.cus_id = t.cus_id
		LEFT JOIN order_details d ON d.order_id = t.order_id
		LEFT JOIN products p ON p.prod_id = d.prod_id
	`, "t.order_id", "d.id", filter)
}

func (q *queries) CreatePawn(ctx context.Context, pawn domain.Pawn) (*domain.Pawn, error) {
	var err error
	if pawn.ID > 0 {
		_, err = q.db.ExecContext(ctx, `
			INSERT INTO pawns (pawn_id, cus_id, pawn_deposit, pawn_date, pawn_expire_date)
			VALUES ($1,$2,$3,$4,$5)
		`, pawn.ID, pawn.CustomerID, pawn.Deposit, dateOnly(pawn.Date), dateOnly(pawn.ExpireDate))
		if err == nil {
			err = q.syncSequence(ctx, "pawns", "pawn_id")
		}
	} else {
		err = q.db.QueryRowContext(ctx, `
			INSERT INTO pawns (cus_id, pawn_deposit, pawn_date, pawn_expire_date)
			VALUES ($1,$2,$3,$4)
			RETURNING pawn_id
		`, pawn.CustomerID, pawn.Deposit, dateOnly(pawn.Date), dateOnly(pawn.ExpireDate)).Scan(&pawn.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	pawn.Date = dateOnly(pawn.Date)
	pawn.ExpireDate = dateOnly(pawn.ExpireDate)
	return &pawn, nil
}

func (q *queries) CreatePawnDetail(ctx context.Context, detail domain.PawnDetail) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO pawn_details (pawn_id, prod_id, pawn_weight, pawn_amount, pawn_unit_price)
		VALUES ($1,$2,$3,$4,$5)
	`, detail.PawnID, detail.ProductID, detail.Weight, detail.Amount, detail.UnitPrice)
	return err
}

func (q *queries) NextPawnID(ctx context.Context) (int64, error) {
	return q.nextID(ctx, `SELECT COALESCE(MAX(pawn_id), 0) + 1 FROM pawns`)
}

func (q *queries) LastPawnIDs(ctx context.Context, limit int) ([]int64, error) {
	return q.lastIDs(ctx, `SELECT pawn_id FROM pawns ORDER BY pawn_id DESC LIMIT $1`, limit)
}

func (q *queries) ListPawnRows(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionRow, error) {
	return q.listRows(ctx, `
		SELECT t.pawn_id, a.cus_id, a.cus_name, COALESCE(a.phone_number, ''), a.address,
			t.pawn_deposit, t.pawn_date::timestamp, t.pawn_expire_date,
			COALESCE(p.prod_id, 0), COALESCE(p.prod_name, ''),
			d.pawn_weight, d.pawn_amount, d.pawn_unit_price, NULL::numeric, NULL::numeric
		FROM pawns t
		JOIN accounts a ON a.cus_id = t.cus_id
		LEFT JOIN pawn_details d ON d.pawn_id = t.pawn_id
		LEFT JOIN products p ON p.prod_id = d.prod_id
	`, "t.pawn_id", "d.id", filter)
}

// listRows appends the filter to a select of headers joined with their details and
// products, and scans the flat rows newest header first, detail rows in insertion order.
func (q *queries) listRows(ctx context.Context, base string, headerColumn string, detailColumn string, filter domain.TransactionFilter) ([]domain.TransactionRow, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if len(filter.CustomerIDs) > 0 {
		args = append(args, filter.CustomerIDs)
		conditions = append(conditions, fmt.Sprintf("t.cus_id = ANY($%d)", len(args)))
	}
	if len(filter.TransactionIDs) > 0 {
		args = append(args, filter.TransactionIDs)
		conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", headerColumn, len(args)))
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s DESC, %s ASC", headerColumn, detailColumn)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.TransactionRow, 0, 32)
	for rows.Next() {
		var row domain.TransactionRow
		var expire sql.NullTime
		if err := rows.Scan(
			&row.TransactionID,
			&row.Customer.ID,
			&row.Customer.Name,
			&row.Customer.PhoneNumber,
			&row.Customer.Address,
			&row.Deposit,
			&row.Date,
			&expire,
			&row.ProductID,
			&row.ProductName,
			&row.Weight,
			&row.Amount,
			&row.UnitPrice,
			&row.LaborCost,
			&row.BuyPrice,
		); err != nil {
			return nil, err
		}
		row.Customer.Role = domain.RoleUser
		row.Date = row.Date.UTC()
		if expire.Valid {
			at := dateOnly(expire.Time)
			row.ExpireDate = &at
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (q *queries) nextID(ctx context.Context, query string) (int64, error) {
	var next int64
	if err := q.db.QueryRowContext(ctx, query).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (q *queries) lastIDs(ctx context.Context, query string, limit int) ([]int64, error) {
	if limit < 1 {
		limit = 3
	}
	rows, err := q.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// syncSequence moves a serial sequence past ids that were inserted explicitly.
func (q *queries) syncSequence(ctx context.Context, table string, column string) error {
	_, err := q.db.ExecContext(ctx, fmt.Sprintf(`
		SELECT setval(pg_get_serial_sequence('%[1]s', '%[2]s'), (SELECT MAX(%[2]s) FROM %[1]s))
	`, table, column))
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullIfZero(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
