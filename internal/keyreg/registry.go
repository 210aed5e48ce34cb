package keyreg

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Registry errors. NoAccess и NotFound различимы всегда: фронту нужно
// разное сообщение для «нет такого ключа» и «ключ чужой».
var (
	ErrNotFound = errors.New("key not found")
	ErrNoAccess = errors.New("no access to key")
	ErrExists   = errors.New("secret already exists")
)

const (
	SecretLength = 20
	// Никнейм ограничиваем, чтобы не разваливать отображение у фронта.
	MaxNickname = 30
)

// Entry — запись реестра: владельцы, имя, последний статус.
// Очередь pending живёт рядом в Store (Enqueue/Drain).
type Entry struct {
	Secret   string   `json:"secret"`
	Nickname string   `json:"nickname"`
	Status   *string  `json:"status"`
	Owners   []string `json:"owners"`
}

// Store — контракт хранилища реестра ключей и очереди команд.
// Drain обязан читать и очищать очередь атомарно относительно Enqueue.
type Store interface {
	CreateKey(secret, nickname, owner string) error // ErrExists при коллизии
	FindKey(secret string) (Entry, bool)
	AddOwner(secret, user string) error // идемпотентно
	SetNickname(secret, name string) error
	SetStatus(secret, text string) error
	ListKeys(owner string) ([]Entry, error)

	SetActive(chatID, secret string) error
	GetActive(chatID string) (string, bool)

	Enqueue(secret string, cmd Command) error
	Drain(secret string) ([]Command, error)
}

// Registry — доменные операции над Store: генерация секретов,
// проверка владения, усечение имён.
type Registry struct {
	store Store
}

func New(store Store) *Registry {
	if store == nil {
		store = NewMemStore()
	}
	return &Registry{store: store}
}

// Store отдаёт нижний слой (нужен relay-контроллеру для push/pull пути).
func (r *Registry) Store() Store { return r.store }

// Create генерирует свежий секрет и регистрирует ключ на owner.
// Коллизия секрета — перегенерация, не ошибка наружу.
func (r *Registry) Create(owner, nickname string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("owner required")
	}
	nickname = truncateNickname(nickname)
	if nickname == "" {
		nickname = "PC"
	}
	for attempt := 0; attempt < 5; attempt++ {
		secret, err := genSecret(SecretLength)
		if err != nil {
			return "", err
		}
		err = r.store.CreateKey(secret, nickname, owner)
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return secret, nil
	}
	return "", fmt.Errorf("secret generation: too many collisions")
}

// Link добавляет user во владельцы существующего ключа; идемпотентно.
func (r *Registry) Link(secret, user string) error {
	if _, ok := r.store.FindKey(secret); !ok {
		return ErrNotFound
	}
	return r.store.AddOwner(secret, user)
}

// Authorize возвращает nil, ErrNotFound или ErrNoAccess.
func (r *Registry) Authorize(secret, user string) error {
	e, ok := r.store.FindKey(secret)
	if !ok {
		return ErrNotFound
	}
	for _, o := range e.Owners {
		if o == user {
			return nil
		}
	}
	return ErrNoAccess
}

// SetActive делает secret активным для контекста chatID (после проверки прав).
func (r *Registry) SetActive(chatID, secret, user string) error {
	if err := r.Authorize(secret, user); err != nil {
		return err
	}
	return r.store.SetActive(chatID, secret)
}

// Resolve — секрет для операции: явный аргумент или активный ключ чата.
// В обоих случаях права перепроверяются (binding не авторитетен).
func (r *Registry) Resolve(chatID, user, explicit string) (string, error) {
	secret := explicit
	if secret == "" {
		s, ok := r.store.GetActive(chatID)
		if !ok {
			return "", ErrNotFound
		}
		secret = s
	}
	if err := r.Authorize(secret, user); err != nil {
		return "", err
	}
	return secret, nil
}

// Rename меняет никнейм (усекается до MaxNickname).
func (r *Registry) Rename(secret, user, name string) error {
	if err := r.Authorize(secret, user); err != nil {
		return err
	}
	return r.store.SetNickname(secret, truncateNickname(name))
}

// Get возвращает запись после проверки прав.
func (r *Registry) Get(secret, user string) (Entry, error) {
	if err := r.Authorize(secret, user); err != nil {
		return Entry{}, err
	}
	e, _ := r.store.FindKey(secret)
	return e, nil
}

// List — ключи, которыми владеет user.
func (r *Registry) List(user string) ([]Entry, error) {
	return r.store.ListKeys(user)
}

// Enqueue ставит команду в очередь ключа (после проверки прав).
// Дедупликации нет: два reboot — две команды.
func (r *Registry) Enqueue(secret, user string, cmd Command) error {
	if err := r.Authorize(secret, user); err != nil {
		return err
	}
	return r.store.Enqueue(secret, cmd)
}

func truncateNickname(s string) string {
	runes := []rune(s)
	if len(runes) > MaxNickname {
		return string(runes[:MaxNickname])
	}
	return s
}

const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func genSecret(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("secret generation: %w", err)
		}
		b[i] = secretAlphabet[idx.Int64()]
	}
	return string(b), nil
}
