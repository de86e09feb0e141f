package memstore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

var ErrDuplicateID = errors.New("memstore: duplicate id")

type UserStore struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

func NewUserStore() *UserStore {
	return &UserStore{byEmail: map[string]models.User{}}
}

var _ auth.UserStore = (*UserStore)(nil)

func (s *UserStore) CreateUser(_ context.Context, u *models.User) error {
	key := strings.ToLower(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[key]; ok {
		return auth.ErrUserExists
	}
	s.byEmail[key] = *u
	return nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &u, nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byEmail {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *UserStore) UpdateUserRole(_ context.Context, id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, u := range s.byEmail {
		if u.ID == id {
			u.Role = role
			s.byEmail[k] = u
			return nil
		}
	}
	return auth.ErrUserNotFound
}
