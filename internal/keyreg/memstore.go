package keyreg

import "sync"

// ─────────────────────────── in-memory store (fallback) ───────────────────────────

type memEntry struct {
	nickname string
	status   *string
	owners   []string
	pending  []Command
}

type memStore struct {
	bySecret map[string]*memEntry
	active   map[string]string // chatID -> secret
	mu       sync.RWMutex
}

func NewMemStore() *memStore {
	return &memStore{
		bySecret: make(map[string]*memEntry),
		active:   make(map[string]string),
	}
}

func (m *memStore) CreateKey(secret, nickname, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySecret[secret]; ok {
		return ErrExists
	}
	m.bySecret[secret] = &memEntry{
		nickname: nickname,
		owners:   []string{owner},
	}
	return nil
}

func (m *memStore) FindKey(secret string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.bySecret[secret]
	if !ok {
		return Entry{}, false
	}
	return m.export(secret, e), true
}

func (m *memStore) AddOwner(secret, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bySecret[secret]
	if !ok {
		return ErrNotFound
	}
	for _, o := range e.owners {
		if o == user {
			return nil
		}
	}
	e.owners = append(e.owners, user)
	return nil
}

func (m *memStore) SetNickname(secret, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bySecret[secret]
	if !ok {
		return ErrNotFound
	}
	e.nickname = name
	return nil
}

func (m *memStore) SetStatus(secret, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bySecret[secret]
	if !ok {
		return ErrNotFound
	}
	e.status = &text
	return nil
}

func (m *memStore) ListKeys(owner string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for s, e := range m.bySecret {
		for _, o := range e.owners {
			if o == owner {
				out = append(out, m.export(s, e))
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) SetActive(chatID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[chatID] = secret
	return nil
}

func (m *memStore) GetActive(chatID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.active[chatID]
	return s, ok
}

func (m *memStore) Enqueue(secret string, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bySecret[secret]
	if !ok {
		return ErrNotFound
	}
	e.pending = append(e.pending, cmd)
	return nil
}

// Drain читает и очищает очередь в одной критической секции:
// команда попадает ровно в один drain.
func (m *memStore) Drain(secret string) ([]Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bySecret[secret]
	if !ok {
		return nil, ErrNotFound
	}
	out := e.pending
	e.pending = nil
	return out, nil
}

// export копирует запись, чтобы наружу не утёк внутренний слайс.
func (m *memStore) export(secret string, e *memEntry) Entry {
	owners := make([]string, len(e.owners))
	copy(owners, e.owners)
	var status *string
	if e.status != nil {
		s := *e.status
		status = &s
	}
	return Entry{
		Secret:   secret,
		Nickname: e.nickname,
		Status:   status,
		Owners:   owners,
	}
}
