// Package trust реализует TOFU-пиннинг сертификата релея: вместо
// CA-цепочки (сервер self-signed, CA нет) доверяем конкретному
// отпечатку, запомненному при первом контакте.
package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store — контракт хранилища запиненного отпечатка.
type Store interface {
	// Load возвращает hex sha-256 отпечаток или "", если первого
	// контакта ещё не было.
	Load() (string, error)
	// Save перезаписывает отпечаток безусловно.
	Save(fp string) error
}

// FileStore держит одну запись {"fp": "<hex>"} по фиксированному пути,
// видимому оператору: удалить файл — единственный штатный способ
// пере-запинить сервер.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var rec struct {
		FP string `json:"fp"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("fingerprint file %s: %w", s.path, err)
	}
	return rec.FP, nil
}

func (s *FileStore) Save(fp string) error {
	data, err := json.Marshal(struct {
		FP string `json:"fp"`
	}{FP: fp})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}
