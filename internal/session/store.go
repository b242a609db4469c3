// Package session хранит состояние браузерной сессии (корзина, шаг оформления,
// токен ожидающего заказа) за интерфейсом Store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound ключ отсутствует в хранилище
var ErrNotFound = errors.New("session key not found")

// Store хранилище значений сессии
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CartKey ключ корзины сессии
func CartKey(sessionID string) string { return "cart:" + sessionID }

// CheckoutKey ключ состояния оформления заказа
func CheckoutKey(sessionID string) string { return "checkout:" + sessionID }

// PendingOrderKey ключ токена ожидающего заказа
func PendingOrderKey(sessionID string) string { return "pending_order:" + sessionID }

// GetJSON читает и декодирует значение. found == false, если ключа нет.
func GetJSON[T any](ctx context.Context, s Store, key string) (value T, found bool, err error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return value, false, nil
		}
		return value, false, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("failed to decode session value %s: %w", key, err)
	}
	return value, true, nil
}

// SetJSON кодирует и сохраняет значение
func SetJSON[T any](ctx context.Context, s Store, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// MemoryStore хранилище в памяти процесса
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
