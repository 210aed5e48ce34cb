package models

import "gorm.io/gorm"

// Key — зарегистрированный секрет (одно наблюдаемое устройство).
// Секрет одновременно идентификатор и bearer-токен, ротации нет.
type Key struct {
	gorm.Model
	Secret   string  `gorm:"column:secret;uniqueIndex;size:64"`
	Nickname string  `gorm:"size:30"`
	Status   *string // null до первого контакта агента
}

// KeyOwner — владелец ключа. Владение только добавляется.
type KeyOwner struct {
	gorm.Model
	Secret string `gorm:"size:64;index:idx_key_owner,priority:1"`
	UserID string `gorm:"size:64;index:idx_key_owner,priority:2"`
}

// PendingCommand — команда в очереди ключа. drain удаляет пачкой.
type PendingCommand struct {
	gorm.Model
	Secret  string `gorm:"size:64;index"`
	Command string `gorm:"size:16"`
}

// ActiveKey — активный ключ для контекста (чата). Не авторитетен:
// права всегда перепроверяются по KeyOwner.
type ActiveKey struct {
	gorm.Model
	ChatID string `gorm:"size:64;uniqueIndex"`
	Secret string `gorm:"size:64"`
}
