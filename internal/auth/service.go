package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/sketchcode/backend/internal/database"
	"github.com/sketchcode/backend/internal/models"
)

// MinPasswordLen is the shortest password Register accepts.
const MinPasswordLen = 8

// TokenTTL is how long an issued JWT stays valid.
const TokenTTL = 24 * time.Hour

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("account not found")
)

type Service interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

type service struct {
	db     database.Beginner
	store  Store
	ledger Ledger
	secret []byte
	admins map[string]bool
	log    *slog.Logger
	now    func() time.Time
}

// NewService builds the auth service. Accounts registering with one of
// adminEmails get the admin role.
func NewService(db database.Beginner, store Store, l Ledger, secret string, adminEmails []string, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &service{db: db, store: store, ledger: l, secret: []byte(secret), admins: admins, log: log, now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and its INITIAL_FREE grant in one transaction.
func (s *service) Register(ctx context.Context, email, password string) (*models.Account, error) {
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	acc := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Plan:         models.PlanFree,
	}
	if s.admins[email] {
		acc.Role = models.RoleAdmin
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.CreateTx(ctx, tx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	balance, err := s.ledger.AddCreditsTx(ctx, tx, acc.ID, models.SignupCredits, models.CreditReasonInitialFree)
	if err != nil {
		return nil, fmt.Errorf("signup credits: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	acc.Credits = balance
	s.log.Info("account registered", "account_id", acc.ID, "role", acc.Role)
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(acc.ID, acc.Role)
}

func (s *service) issueToken(accountID uuid.UUID, role string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return id, c.Role, nil
}

// DeleteAccount hard-deletes the account. Its ledger, creations and
// payment sessions go with it.
func (s *service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.log.Info("account deleted", "account_id", id)
	return nil
}
