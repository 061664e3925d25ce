package userstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/sensorgate"
)

// Memory is an in-process UserStore. Returned users are copies.
type Memory struct {
	mu     sync.RWMutex
	byName map[string]*sensorgate.User
	byID   map[string]*sensorgate.User
}

func NewMemory() *Memory {
	return &Memory{
		byName: make(map[string]*sensorgate.User),
		byID:   make(map[string]*sensorgate.User),
	}
}

func (m *Memory) Create(_ context.Context, u *sensorgate.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.UserName]; ok {
		return sensorgate.ErrUsernameTaken
	}
	cp := *u
	m.byName[cp.UserName] = &cp
	m.byID[cp.ID] = &cp
	return nil
}

func (m *Memory) FindByName(_ context.Context, userName string) (*sensorgate.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byName[userName]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

func (m *Memory) CountByName(_ context.Context, userName string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.byName[userName]; ok {
		return 1, nil
	}
	return 0, nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("update password hash: user %s not found", userID)
	}
	u.PasswordHash = hash
	return nil
}
