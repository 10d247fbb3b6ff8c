package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/repository"
	"github.com/chatify/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// Валидация email: допустимый формат (упрощённый, без полного RFC).
var (
	emailRegexp    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,32}$`)
)

// UserStore - пользователи и индекс имён.
type UserStore interface {
	CreateWithUsername(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsername(ctx context.Context, name string) (*model.UsernameEntry, error)
}

// SessionRecords - строки таблицы sessions.
type SessionRecords interface {
	Create(ctx context.Context, s *model.Session) error
	RevokeByID(ctx context.Context, sessionID string) (bool, error)
}

// WelcomeMailer - приветственное письмо после регистрации.
type WelcomeMailer interface {
	Configured() bool
	SendWelcome(ctx context.Context, to, username string) error
}

// Identity - аутентифицированный пользователь в рамках конкретной сессии.
type Identity struct {
	model.Principal
	SessionID string `json:"session_id"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult - ответ на регистрацию и вход.
type AuthResult struct {
	Token string          `json:"token"`
	User  model.Principal `json:"user"`
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users    UserStore
	sessions SessionRecords
	store    storage.SessionStore
	bus      events.Publisher
	mailer   WelcomeMailer
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewAuthService(users UserStore, sessions SessionRecords, store storage.SessionStore, bus events.Publisher, mailer WelcomeMailer, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		users: users, sessions: sessions, store: store, bus: bus, mailer: mailer,
		secret: []byte(secret), ttl: ttl, now: time.Now,
	}
}

func validateRegister(req *RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = model.NormalizeEmail(req.Email)
	if !usernameRegexp.MatchString(req.Username) {
		return ErrInvalidUsername
	}
	if !emailRegexp.MatchString(req.Email) {
		return ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// Register занимает имя и создаёт аккаунт атомарно, затем открывает сессию.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := validateRegister(&req); err != nil {
		return nil, err
	}
	// быстрый отказ до bcrypt; гонку закрывает транзакция CreateWithUsername
	if _, err := s.users.GetUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateWithUsername(ctx, u); err != nil {
		return nil, err
	}
	logger.Infof("auth: registered %s (%s)", u.Username, u.ID)
	s.sendWelcome(u)
	return s.openSession(ctx, u)
}

func (s *AuthService) sendWelcome(u *model.User) {
	if s.mailer == nil || !s.mailer.Configured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.SendWelcome(ctx, u.Email, u.Username); err != nil {
			logger.Errorf("auth: welcome email to %s: %v", u.Email, err)
		}
	}()
}

// Login проверяет пароль и открывает новую сессию. Попытки ограничены по email.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := model.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	allowed, err := s.store.CheckRateLimit(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimitExceeded
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(ctx, u)
}

func (s *AuthService) openSession(ctx context.Context, u *model.User) (*AuthResult, error) {
	now := s.now().UTC()
	sess := &model.Session{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.store.SetSession(ctx, sess.ID, u.ID, s.ttl); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	token, err := s.issueToken(u, sess)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u.ToPrincipal()}, nil
}

func (s *AuthService) issueToken(u *model.User, sess *model.Session) (string, error) {
	claims := sessionClaims{
		SessionID: sess.ID,
		Email:     u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate проверяет подпись и срок токена, затем что сессия ещё жива в store.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	uid, err := s.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if uid == "" || uid != claims.Subject {
		return nil, ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return &Identity{Principal: u.ToPrincipal(), SessionID: claims.SessionID}, nil
}

// Logout отзывает сессию; все её соединения закрываются по событию session_revoked.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.RevokeByID(ctx, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.bus.Publish(ctx, events.SessionRevoked(sessionID)); err != nil {
		logger.Errorf("auth: publish session_revoked: %v", err)
	}
	return nil
}
