package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adeilh/go-rakh-kv/cache"
)

var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUserEmailInUse     = errors.New("auth: email already in use")
	ErrUserInvalidInput   = errors.New("auth: invalid user input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

type User struct {
	ID           string
	Email        string
	PasswordHash PasswordHash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository stores users keyed by ID with unique, normalized emails.
// Lookups of unknown users return ErrUserNotFound; duplicate emails
// ErrUserEmailInUse.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

type UserServiceConfig struct {
	Repository UserRepository
	Hasher     PasswordHasher
	Now        func() time.Time
}

// UserService registers and authenticates users.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	now    func() time.Time
}

func NewUserService(cfg UserServiceConfig) (*UserService, error) {
	if cfg.Repository == nil || cfg.Hasher == nil {
		return nil, ErrUserInvalidInput
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &UserService{repo: cfg.Repository, hasher: cfg.Hasher, now: now}, nil
}

// Register stores a new user. The email is trimmed and lower-cased first.
func (s *UserService) Register(ctx context.Context, email string, password []byte) (User, error) {
	addr, ok := normalizeEmail(email)
	if !ok || len(password) == 0 {
		return User{}, ErrUserInvalidInput
	}
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return User{}, err
	}
	now := s.now()
	user := User{ID: uuid.NewString(), Email: addr, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate returns ErrInvalidCredentials for both unknown emails and
// wrong passwords. A hash the hasher considers outdated is replaced; a
// failure to store the new hash does not fail the login.
func (s *UserService) Authenticate(ctx context.Context, email string, password []byte) (User, error) {
	addr, ok := normalizeEmail(email)
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByEmail(ctx, addr)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	err = s.hasher.Compare(ctx, password, user.PasswordHash)
	if errors.Is(err, ErrPasswordMismatch) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		if hash, err := s.hasher.Hash(ctx, password); err == nil {
			user.PasswordHash, user.UpdatedAt = hash, s.now()
			_ = s.repo.UpdateUser(ctx, user)
		}
	}
	return user, nil
}

func (s *UserService) User(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrUserInvalidInput
	}
	return s.repo.GetUserByID(ctx, id)
}

// normalizeEmail accepts a bare address only, not "Name <addr>".
func normalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", false
	}
	return email, true
}

// MemoryUserRepository is a UserRepository in process memory. Users are
// lost on restart.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]User   // by ID
	email map[string]string // email -> ID
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]User), email: make(map[string]string)}
}

func (r *MemoryUserRepository) CreateUser(ctx context.Context, user User) error {
	return r.write(ctx, func() error {
		if _, taken := r.email[user.Email]; taken {
			return ErrUserEmailInUse
		}
		r.users[user.ID] = user
		r.email[user.Email] = user.ID
		return nil
	})
}

func (r *MemoryUserRepository) UpdateUser(ctx context.Context, user User) error {
	return r.write(ctx, func() error {
		prev, ok := r.users[user.ID]
		if !ok {
			return ErrUserNotFound
		}
		if owner, taken := r.email[user.Email]; taken && owner != user.ID {
			return ErrUserEmailInUse
		}
		delete(r.email, prev.Email)
		r.email[user.Email] = user.ID
		r.users[user.ID] = user
		return nil
	})
}

func (r *MemoryUserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.email[email])
}

func (r *MemoryUserRepository) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

func (r *MemoryUserRepository) lookup(id string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) write(ctx context.Context, fn func() error) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}
