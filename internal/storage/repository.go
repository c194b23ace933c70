package storage

import (
	"context"
	"sync"
)

// KeySet: упорядоченное множество идентификаторов отправленных лотов.
// Порядок добавления сохраняется, членство по точному совпадению строки.
type KeySet struct {
	order []string
	index map[string]struct{}
}

func NewKeySet(ids ...string) *KeySet {
	s := &KeySet{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *KeySet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add возвращает false, если id уже был в множестве или пустой.
func (s *KeySet) Add(id string) bool {
	if id == "" || s.Has(id) {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *KeySet) Len() int {
	return len(s.order)
}

// Items: копия в порядке добавления.
func (s *KeySet) Items() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SentStore хранит множество отправленных лотов между прогонами.
type SentStore interface {
	// Load: отсутствие данных даёт пустое множество, не ошибку.
	Load(ctx context.Context) (*KeySet, error)

	// Save полностью заменяет сохранённое множество (без слияния).
	Save(ctx context.Context, set *KeySet) error

	Close() error
}

// MemoryStore держит множество в памяти процесса (dry-run, тесты).
type MemoryStore struct {
	mu    sync.Mutex
	items []string
}

func NewMemoryStore(ids ...string) *MemoryStore {
	return &MemoryStore{items: NewKeySet(ids...).Items()}
}

func (m *MemoryStore) Load(_ context.Context) (*KeySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewKeySet(m.items...), nil
}

func (m *MemoryStore) Save(_ context.Context, set *KeySet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = set.Items()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
