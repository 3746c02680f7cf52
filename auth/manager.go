package auth

import (
	"context"
	"time"

	"github.com/adeilh/go-rakh-kv/cache"
)

// Manager bundles session and user workflows behind one type.
type Manager struct {
	sessions  SessionStore
	users     *UserService
	keyPrefix string
}

// ManagerConfig wires the dependencies required for Manager.
type ManagerConfig struct {
	Cache          cache.Store
	SessionOptions SessionStoreOptions
	UserRepository UserRepository
	PasswordHasher PasswordHasher
	Now            func() time.Time
}

// NewManager builds a Manager with the provided dependencies.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Cache == nil {
		return nil, ErrUserInvalidInput
	}
	repo := cfg.UserRepository
	if repo == nil {
		repo = NewMemoryUserRepository()
	}
	hasher := cfg.PasswordHasher
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	users, err := NewUserService(UserServiceConfig{Repository: repo, Hasher: hasher, Now: cfg.Now})
	if err != nil {
		return nil, err
	}
	sessionOpts := cfg.SessionOptions
	if sessionOpts.Now == nil {
		sessionOpts.Now = cfg.Now
	}
	sessions := NewCacheSessionStore(cfg.Cache, sessionOpts)
	return &Manager{sessions: sessions, users: users, keyPrefix: sessions.KeyPrefix()}, nil
}

// SessionKeyPrefix is the prefix of every session key written to the
// cache, e.g. "auth_". Callers exposing raw keys should refuse it.
func (m *Manager) SessionKeyPrefix() string { return m.keyPrefix }

// Sessions exposes the session store, e.g. for NewMiddleware.
func (m *Manager) Sessions() SessionStore { return m.sessions }

// Register creates a user account.
func (m *Manager) Register(ctx context.Context, email string, password []byte) (User, error) {
	return m.users.Register(ctx, email, password)
}

// ConnectInfo describes the client opening a session.
type ConnectInfo struct {
	IP        string
	UserAgent string
}

// Connect authenticates the credentials and issues a session token.
func (m *Manager) Connect(ctx context.Context, email string, password []byte, info ConnectInfo) (SessionToken, error) {
	user, err := m.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.sessions.Create(ctx, SessionDescriptor{
		Subject:   user.ID,
		IP:        info.IP,
		UserAgent: info.UserAgent,
	})
}

// Disconnect revokes the token.
func (m *Manager) Disconnect(ctx context.Context, token string) error {
	if _, err := m.sessions.Get(ctx, token); err != nil {
		return err
	}
	return m.sessions.Delete(ctx, token)
}

// CurrentUser resolves the user owning the token.
func (m *Manager) CurrentUser(ctx context.Context, token string) (User, error) {
	session, err := m.sessions.Get(ctx, token)
	if err != nil {
		return User{}, err
	}
	return m.users.User(ctx, session.Descriptor().Subject)
}
