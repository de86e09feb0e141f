package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUnauthorized = errors.New("missing or invalid token")
	ErrForbidden    = errors.New("insufficient role")
)

const (
	DefaultTokenTTL   = 24 * time.Hour
	minPasswordLength = 8
)

// UserStore persists accounts. Emails are compared case-insensitively;
// CreateUser returns ErrUserExists on a duplicate email and the getters
// return ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) error
}

type Config struct {
	// Secret signs tokens. When empty an ephemeral secret is generated and
	// tokens do not survive a restart.
	Secret   string
	TokenTTL time.Duration
	Now      func() time.Time
}

type Service struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewService(users UserStore, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := []byte(strings.TrimSpace(cfg.Secret))
	if len(secret) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		secret = []byte(base64.RawURLEncoding.EncodeToString(buf))
		logger.Warn("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{users: users, secret: secret, ttl: ttl, now: now, log: logger}, nil
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Claims is what a verified token asserts about its bearer.
type Claims struct {
	UserID string
	Role   models.Role
}

// InputError reports a malformed register or login payload.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string { return e.Field + ": " + e.Msg }

// Register creates a user with role "user". Elevated roles are only granted
// through EnsureAdminAccount or the store directly.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, &InputError{Field: "password", Msg: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	user, err := s.createUser(ctx, email, req.Password, strings.TrimSpace(req.Name), models.RoleUser)
	if err != nil {
		return nil, err
	}
	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResponse{Token: token, User: *user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}
	// Accounts federated from an identity provider have no local password.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: *user}, nil
}

// VerifyToken checks signature, algorithm and expiry and returns the bearer's
// id and role. Any failure is ErrUnauthorized.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthorized
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrUnauthorized
	}
	role, _ := claims["role"].(string)
	if !models.Role(role).Valid() {
		return nil, ErrUnauthorized
	}
	return &Claims{UserID: sub, Role: models.Role(role)}, nil
}

// AdminAccount is the bootstrap administrator configured at startup.
type AdminAccount struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdminAccount makes sure the configured administrator exists with role
// admin. It is safe to call on every start: an existing account keeps its
// password and only has its role raised if needed. An empty email is a no-op.
func (s *Service) EnsureAdminAccount(ctx context.Context, acct AdminAccount) error {
	if strings.TrimSpace(acct.Email) == "" {
		s.log.Info("no admin account configured; skipping bootstrap")
		return nil
	}
	email, err := normalizeEmail(acct.Email)
	if err != nil {
		return err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if err := s.users.UpdateUserRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return fmt.Errorf("promote admin: %w", err)
			}
			s.log.Info("promoted existing account to admin", zap.String("user_id", existing.ID))
		}
		return nil
	case !errors.Is(err, ErrUserNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	if acct.Password == "" {
		return &InputError{Field: "password", Msg: "admin password is required to create the admin account"}
	}
	name := strings.TrimSpace(acct.Name)
	if name == "" {
		name = "Administrator"
	}
	user, err := s.createUser(ctx, email, acct.Password, name, models.RoleAdmin)
	if errors.Is(err, ErrUserExists) {
		// Another instance won the race.
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("created admin account", zap.String("user_id", user.ID))
	return nil
}

func (s *Service) createUser(ctx context.Context, email, password, name string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert failed: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) generateToken(u *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &InputError{Field: "email", Msg: "must be a valid email address"}
	}
	return email, nil
}
