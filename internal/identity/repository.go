package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const (
	SessionCookie   = "session"
	bcryptCost      = 12
	uniqueViolation = "23505"
)

var ErrEmailTaken = errors.New("email already registered")

type Profile struct {
	Name  string
	Phone string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateAccount registers a customer. It returns ErrEmailTaken when the
// email, compared case-insensitively, already belongs to an account.
func (r *Repository) CreateAccount(ctx context.Context, email, password string, profile Profile) (*domain.Customer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	customer := &domain.Customer{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      profile.Name,
		Phone:     profile.Phone,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO customers (id, email, name, phone, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, customer.ID, customer.Email, customer.Name, customer.Phone, string(hash), customer.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return customer, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	c := &domain.Customer{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, phone, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

// FindBySession returns the customer owning an unexpired session token, or
// nil when there is none.
func (r *Repository) FindBySession(ctx context.Context, token string) (*domain.Customer, error) {
	c := &domain.Customer{}

	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.email, c.name, c.phone, c.created_at
		FROM sessions s
		JOIN customers c ON c.id = s.customer_id
		WHERE s.token_hash = $1 AND s.expires_at > NOW()
	`, HashToken(token)).Scan(&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

// CurrentCustomer resolves the session carried by the request cookie or
// bearer token. It returns nil without error for anonymous requests.
func (r *Repository) CurrentCustomer(req *http.Request) (*domain.Customer, error) {
	token := SessionToken(req)
	if token == "" {
		return nil, nil
	}
	return r.FindBySession(req.Context(), token)
}

func SessionToken(req *http.Request) string {
	if cookie, err := req.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := req.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GeneratePassword returns a random password for auto-provisioned accounts.
// The customer never sees it and signs in through a reset link.
func GeneratePassword() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
