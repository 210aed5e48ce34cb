package repo

import (
	"errors"

	"pulse/internal/keyreg"
	"pulse/internal/models"

	"gorm.io/gorm"
)

// KeyStore — gorm-реализация keyreg.Store.
type KeyStore struct {
	db *gorm.DB
}

func NewKeyStore(db *gorm.DB) *KeyStore {
	return &KeyStore{db: db}
}

var _ keyreg.Store = (*KeyStore)(nil)

func (s *KeyStore) CreateKey(secret, nickname, owner string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Key
		err := tx.Where(&models.Key{Secret: secret}).First(&existing).Error
		if err == nil {
			return keyreg.ErrExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&models.Key{Secret: secret, Nickname: nickname}).Error; err != nil {
			return err
		}
		return tx.Create(&models.KeyOwner{Secret: secret, UserID: owner}).Error
	})
}

func (s *KeyStore) FindKey(secret string) (keyreg.Entry, bool) {
	var k models.Key
	if err := s.db.Where(&models.Key{Secret: secret}).First(&k).Error; err != nil {
		return keyreg.Entry{}, false
	}
	owners, err := s.owners(secret)
	if err != nil {
		return keyreg.Entry{}, false
	}
	return keyreg.Entry{
		Secret:   k.Secret,
		Nickname: k.Nickname,
		Status:   k.Status,
		Owners:   owners,
	}, true
}

func (s *KeyStore) AddOwner(secret, user string) error {
	var o models.KeyOwner
	tx := s.db.Where(&models.KeyOwner{Secret: secret, UserID: user}).First(&o)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return s.db.Create(&models.KeyOwner{Secret: secret, UserID: user}).Error
		}
		return tx.Error
	}
	return nil // уже владелец
}

func (s *KeyStore) SetNickname(secret, name string) error {
	return s.touchKey(secret, "nickname", name)
}

func (s *KeyStore) SetStatus(secret, text string) error {
	return s.touchKey(secret, "status", text)
}

// touchKey обновляет одно поле ключа. Поля независимы: rename,
// гоняющийся с push-обновлением статуса, не затирает чужую колонку.
func (s *KeyStore) touchKey(secret, column string, value any) error {
	res := s.db.Model(&models.Key{}).Where("secret = ?", secret).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return keyreg.ErrNotFound
	}
	return nil
}

func (s *KeyStore) ListKeys(owner string) ([]keyreg.Entry, error) {
	var ownerRows []models.KeyOwner
	if err := s.db.Where(&models.KeyOwner{UserID: owner}).Order("secret").Find(&ownerRows).Error; err != nil {
		return nil, err
	}
	out := make([]keyreg.Entry, 0, len(ownerRows))
	for _, row := range ownerRows {
		if e, ok := s.FindKey(row.Secret); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *KeyStore) SetActive(chatID, secret string) error {
	var a models.ActiveKey
	tx := s.db.Where(&models.ActiveKey{ChatID: chatID}).First(&a)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return s.db.Create(&models.ActiveKey{ChatID: chatID, Secret: secret}).Error
		}
		return tx.Error
	}
	a.Secret = secret
	return s.db.Save(&a).Error
}

func (s *KeyStore) GetActive(chatID string) (string, bool) {
	var a models.ActiveKey
	if err := s.db.Where(&models.ActiveKey{ChatID: chatID}).First(&a).Error; err != nil {
		return "", false
	}
	return a.Secret, true
}

func (s *KeyStore) Enqueue(secret string, cmd keyreg.Command) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var k models.Key
		if err := tx.Where(&models.Key{Secret: secret}).First(&k).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return keyreg.ErrNotFound
			}
			return err
		}
		return tx.Create(&models.PendingCommand{Secret: secret, Command: string(cmd)}).Error
	})
}

// Drain выбирает очередь в порядке постановки и удаляет её в той же
// транзакции: при гонке с Enqueue команда попадает либо в этот drain,
// либо в следующий, но не в оба.
func (s *KeyStore) Drain(secret string) ([]keyreg.Command, error) {
	var out []keyreg.Command
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var k models.Key
		if err := tx.Where(&models.Key{Secret: secret}).First(&k).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return keyreg.ErrNotFound
			}
			return err
		}
		var rows []models.PendingCommand
		if err := tx.Where("secret = ?", secret).Order("id ASC").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(rows))
		out = make([]keyreg.Command, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			out = append(out, keyreg.Command(row.Command))
		}
		return tx.Unscoped().Delete(&models.PendingCommand{}, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *KeyStore) owners(secret string) ([]string, error) {
	var rows []models.KeyOwner
	if err := s.db.Where(&models.KeyOwner{Secret: secret}).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.UserID)
	}
	return out, nil
}
