package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	userDomain "github.com/davicafu/postmesh/internal/user/domain"
)

// InMemoryUserRepo implementa usuarios y refresh tokens sobre mapas.
type InMemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]userDomain.User
	tokens map[string]userDomain.RefreshToken
}

var (
	_ userDomain.UserRepository         = (*InMemoryUserRepo)(nil)
	_ userDomain.RefreshTokenRepository = (*InMemoryUserRepo)(nil)
)

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		users:  make(map[uuid.UUID]userDomain.User),
		tokens: make(map[string]userDomain.RefreshToken),
	}
}

func (r *InMemoryUserRepo) Create(ctx context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.ID == u.ID || existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return userDomain.ErrUserAlreadyExists
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *InMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, userDomain.ErrUserNotFound
	}
	return &u, nil
}

func (r *InMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*userDomain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, userDomain.ErrUserNotFound
}

func (r *InMemoryUserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryUserRepo) Save(ctx context.Context, t *userDomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Token] = *t
	return nil
}

func (r *InMemoryUserRepo) Get(ctx context.Context, token string) (*userDomain.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, userDomain.ErrInvalidRefreshToken
	}
	return &t, nil
}

func (r *InMemoryUserRepo) Delete(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token]; !ok {
		return false, nil
	}
	delete(r.tokens, token)
	return true, nil
}

func (r *InMemoryUserRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, k)
		}
	}
	return nil
}

// TokenCount devuelve cuántos refresh tokens hay guardados.
func (r *InMemoryUserRepo) TokenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
