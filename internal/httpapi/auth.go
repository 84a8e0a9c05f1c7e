package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

// StaffStore is the part of the entity store that holds staff logins.
type StaffStore interface {
	FindStaffByPhone(ctx context.Context, phone string) (*domain.Account, error)
	CreateAccount(ctx context.Context, account domain.Account) (*domain.Account, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	staff    StaffStore
}

type pawnshopClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, staff StaffStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		staff:    staff,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" || a.staff == nil {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	account, err := a.staff.FindStaffByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(account.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(account.ID, account.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        account.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &pawnshopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id < 1 {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{ID: id, Role: claims.Role}, nil
}

func (a *AuthManager) sign(id int64, role string, expiresAt time.Time) (string, error) {
	claims := pawnshopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "pawnshop",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// EnsureAdmin creates the staff login for phone unless one already exists.
// It reports whether an account was created.
func (a *AuthManager) EnsureAdmin(ctx context.Context, phone, name, password string) (bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false, nil
	}
	if len(password) < 8 {
		return false, fmt.Errorf("bootstrap admin password must be at least 8 characters")
	}

	if _, err := a.staff.FindStaffByPhone(ctx, phone); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password")
	}
	if strings.TrimSpace(name) == "" {
		name = "Admin"
	}

	_, err = a.staff.CreateAccount(ctx, domain.Account{
		Name:         strings.TrimSpace(name),
		PhoneNumber:  phone,
		Role:         domain.RoleAdmin,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
