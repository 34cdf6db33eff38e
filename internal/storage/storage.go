// Package storage реализует долговременное клиентское хранилище витрины:
// токен сессии и гостевую корзину, сохраняемые на диске между запусками.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// Фиксированные ключи хранилища.
const (
	tokenFileName     = "auth_token"
	guestCartFileName = "guest_cart.json"
)

// Storage управляет файлами состояния в указанном каталоге.
type Storage struct {
	dir string
}

// persistedItem — дисковое представление позиции гостевой корзины.
// Обогащённые данные о товаре живут только в памяти.
type persistedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// New создаёт хранилище в указанном каталоге, создавая его при необходимости.
func New(dir string) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("storage: empty state directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Token возвращает сохранённый токен сессии. Отсутствие файла не является ошибкой.
func (s *Storage) Token() (string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, tokenFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// SetToken сохраняет токен сессии.
func (s *Storage) SetToken(token string) error {
	if err := os.WriteFile(filepath.Join(s.dir, tokenFileName), []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// RemoveToken удаляет сохранённый токен сессии.
func (s *Storage) RemoveToken() error {
	err := os.Remove(filepath.Join(s.dir, tokenFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// GuestCart возвращает сохранённую гостевую корзину. Отсутствие файла
// читается как пустая корзина.
func (s *Storage) GuestCart() ([]model.GuestCartItem, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, guestCartFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read guest cart: %w", err)
	}

	var stored []persistedItem
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}

	items := make([]model.GuestCartItem, 0, len(stored))
	for _, it := range stored {
		items = append(items, model.GuestCartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return items, nil
}

// SetGuestCart сохраняет гостевую корзину, отбрасывая обогащённые данные о товарах.
func (s *Storage) SetGuestCart(items []model.GuestCartItem) error {
	stored := make([]persistedItem, 0, len(items))
	for _, it := range items {
		stored = append(stored, persistedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	b, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, guestCartFileName), b, 0o644); err != nil {
		return fmt.Errorf("write guest cart: %w", err)
	}
	return nil
}

// RemoveGuestCart удаляет сохранённую гостевую корзину.
func (s *Storage) RemoveGuestCart() error {
	err := os.Remove(filepath.Join(s.dir, guestCartFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove guest cart: %w", err)
	}
	return nil
}

// AddToGuestCart добавляет товар в гостевую корзину или увеличивает
// количество уже существующей позиции.
func (s *Storage) AddToGuestCart(productID int64, quantity int) error {
	if quantity < 1 {
		return errors.New("storage: quantity must be positive")
	}

	items, err := s.GuestCart()
	if err != nil {
		return err
	}

	found := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		items = append(items, model.GuestCartItem{ProductID: productID, Quantity: quantity})
	}

	return s.SetGuestCart(items)
}

// UpdateGuestCartItem устанавливает количество товара в гостевой корзине.
// Нулевое или отрицательное количество удаляет позицию.
func (s *Storage) UpdateGuestCartItem(productID int64, quantity int) error {
	items, err := s.GuestCart()
	if err != nil {
		return err
	}

	updated := items[:0]
	for _, it := range items {
		if it.ProductID == productID {
			if quantity < 1 {
				continue
			}
			it.Quantity = quantity
		}
		updated = append(updated, it)
	}

	return s.SetGuestCart(updated)
}

// RemoveFromGuestCart удаляет товар из гостевой корзины.
func (s *Storage) RemoveFromGuestCart(productID int64) error {
	return s.UpdateGuestCartItem(productID, 0)
}
