// Package cart реализует хранилище состояния корзины: серверной для
// авторизованного пользователя и локальной гостевой для анонимного.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/api"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/storage"
)

// mode описывает режим работы корзины.
type mode int

const (
	modeGuest mode = iota
	modeAuthenticated
)

// ErrInvalidQuantity возвращается при попытке добавить товар с
// неположительным количеством.
var ErrInvalidQuantity = errors.New("cart: quantity must be a positive integer")

// Store хранит состояние корзины текущей сессии.
type Store struct {
	mu sync.Mutex

	client  *api.Client
	storage *storage.Storage
	logger  *zap.Logger

	mode       mode
	cart       *model.Cart
	guestItems []model.GuestCartItem

	promo       *model.PromoCode
	shippingTax *model.ShippingTaxInfo

	loading bool
	errMsg  string
}

// NewStore создаёт хранилище корзины с указанным клиентом API и локальным хранилищем.
func NewStore(client *api.Client, st *storage.Storage, logger *zap.Logger) *Store {
	return &Store{
		client:  client,
		storage: st,
		logger:  logger,
	}
}

// Init загружает начальное состояние корзины: серверную корзину для
// авторизованной сессии либо гостевую из локального хранилища с
// обогащением данными каталога.
func (s *Store) Init(ctx context.Context, authenticated bool) error {
	if authenticated {
		s.mu.Lock()
		s.mode = modeAuthenticated
		s.mu.Unlock()
		return s.Refresh(ctx)
	}

	items, err := s.storage.GuestCart()
	if err != nil {
		s.logger.Warn("read guest cart", zap.Error(err))
		items = nil
	}

	enriched := s.enrichItems(ctx, items)

	s.mu.Lock()
	s.mode = modeGuest
	s.cart = nil
	s.guestItems = enriched
	s.mu.Unlock()
	return nil
}

// Refresh перечитывает серверную корзину. Для гостевой сессии ничего не делает.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.mode != modeAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	var cart model.Cart
	err := s.client.Get(ctx, "/api/cart", &cart, true)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.errMsg = errMessage(err, "failed to load cart")
		s.mu.Unlock()
		return err
	}
	s.cart = &cart
	s.mu.Unlock()
	return nil
}

// OnLogin переводит корзину в авторизованный режим. Непустая гостевая
// корзина переносится на сервер ровно одним вызовом merge, после чего
// локальная копия очищается; пустая гостевая корзина переноса не вызывает.
func (s *Store) OnLogin(ctx context.Context) error {
	s.mu.Lock()
	s.mode = modeAuthenticated
	s.guestItems = nil
	s.mu.Unlock()

	guest, err := s.storage.GuestCart()
	if err != nil {
		s.logger.Warn("read guest cart before merge", zap.Error(err))
		guest = nil
	}

	if len(guest) > 0 {
		body := struct {
			Items []model.GuestCartItem `json:"items"`
		}{Items: guest}

		if err := s.client.Post(ctx, "/api/cart/merge", body, nil, true); err != nil {
			// Гостевая корзина остаётся на диске и будет перенесена
			// при следующем входе.
			s.logger.Error("merge guest cart", zap.Error(err))
		} else if err := s.storage.RemoveGuestCart(); err != nil {
			s.logger.Warn("clear guest cart after merge", zap.Error(err))
		}
	}

	return s.Refresh(ctx)
}

// OnLogout переводит корзину в гостевой режим и сбрасывает серверный кеш.
func (s *Store) OnLogout(ctx context.Context) {
	items, err := s.storage.GuestCart()
	if err != nil {
		s.logger.Warn("read guest cart", zap.Error(err))
		items = nil
	}

	enriched := s.enrichItems(ctx, items)

	s.mu.Lock()
	s.mode = modeGuest
	s.cart = nil
	s.guestItems = enriched
	s.promo = nil
	s.shippingTax = nil
	s.errMsg = ""
	s.mu.Unlock()
}

// AddToCart добавляет товар в корзину текущего режима. Количество должно
// быть положительным; правда о наличии товара остаётся за сервером.
func (s *Store) AddToCart(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		s.setErr(ErrInvalidQuantity.Error())
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	authenticated := s.mode == modeAuthenticated
	s.errMsg = ""
	s.mu.Unlock()

	if authenticated {
		body := struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		}{ProductID: productID, Quantity: quantity}

		var cart model.Cart
		if err := s.client.Post(ctx, "/api/cart/items", body, &cart, true); err != nil {
			s.setErr(errMessage(err, "failed to add item to cart"))
			return err
		}

		s.mu.Lock()
		s.cart = &cart
		s.mu.Unlock()
		return nil
	}

	if err := s.storage.AddToGuestCart(productID, quantity); err != nil {
		s.setErr("failed to add item to cart")
		return err
	}

	items, err := s.storage.GuestCart()
	if err != nil {
		s.setErr("failed to reload guest cart")
		return err
	}

	enriched := s.enrichItems(ctx, items)

	s.mu.Lock()
	s.guestItems = enriched
	s.mu.Unlock()
	return nil
}

// UpdateCartItem изменяет количество позиции серверной корзины. Для гостя
// ничего не делает: у гостевой корзины нет серверных идентификаторов позиций.
func (s *Store) UpdateCartItem(ctx context.Context, itemID int64, quantity int) error {
	return s.authenticatedCall(ctx, func(ctx context.Context, out *model.Cart) error {
		body := struct {
			Quantity int `json:"quantity"`
		}{Quantity: quantity}
		return s.client.Put(ctx, fmt.Sprintf("/api/cart/items/%d", itemID), body, out, true)
	}, "failed to update item")
}

// RemoveCartItem удаляет позицию серверной корзины. Для гостя ничего не делает.
func (s *Store) RemoveCartItem(ctx context.Context, itemID int64) error {
	return s.authenticatedCall(ctx, func(ctx context.Context, out *model.Cart) error {
		return s.client.Delete(ctx, fmt.Sprintf("/api/cart/items/%d", itemID), out, true)
	}, "failed to remove item")
}

// SaveForLater откладывает позицию серверной корзины. Для гостя ничего не делает.
func (s *Store) SaveForLater(ctx context.Context, itemID int64) error {
	return s.authenticatedCall(ctx, func(ctx context.Context, out *model.Cart) error {
		return s.client.Post(ctx, fmt.Sprintf("/api/cart/items/%d/save", itemID), nil, out, true)
	}, "failed to save item")
}

// RestoreSavedItem возвращает отложенную позицию в корзину. Для гостя ничего не делает.
func (s *Store) RestoreSavedItem(ctx context.Context, savedID int64) error {
	return s.authenticatedCall(ctx, func(ctx context.Context, out *model.Cart) error {
		return s.client.Post(ctx, fmt.Sprintf("/api/cart/saved/%d/restore", savedID), nil, out, true)
	}, "failed to restore item")
}

// RemoveSavedItem удаляет отложенную позицию. Для гостя ничего не делает.
func (s *Store) RemoveSavedItem(ctx context.Context, savedID int64) error {
	return s.authenticatedCall(ctx, func(ctx context.Context, out *model.Cart) error {
		return s.client.Delete(ctx, fmt.Sprintf("/api/cart/saved/%d", savedID), out, true)
	}, "failed to remove saved item")
}

// ClearCart очищает корзину текущего режима.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	authenticated := s.mode == modeAuthenticated
	s.errMsg = ""
	s.mu.Unlock()

	if authenticated {
		if err := s.client.Delete(ctx, "/api/cart", nil, true); err != nil {
			s.setErr(errMessage(err, "failed to clear cart"))
			return err
		}

		s.mu.Lock()
		s.cart = nil
		s.mu.Unlock()
		return nil
	}

	if err := s.storage.RemoveGuestCart(); err != nil {
		s.setErr("failed to clear cart")
		return err
	}

	s.mu.Lock()
	s.guestItems = nil
	s.mu.Unlock()
	return nil
}

// ApplyPromoCode проверяет промокод на сервере. Недействительный код не
// меняет состояние и возвращает ошибку с серверным сообщением.
func (s *Store) ApplyPromoCode(ctx context.Context, code string) error {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()

	body := struct {
		Code string `json:"code"`
	}{Code: code}

	var promo model.PromoCode
	if err := s.client.Post(ctx, "/api/cart/promo/validate", body, &promo, true); err != nil {
		s.setErr(errMessage(err, "failed to apply promo code"))
		return err
	}

	if !promo.IsValid {
		msg := promo.Message
		if msg == "" {
			msg = "invalid promo code"
		}
		s.setErr(msg)
		return errors.New(msg)
	}

	s.mu.Lock()
	s.promo = &promo
	s.mu.Unlock()
	return nil
}

// RemovePromoCode сбрасывает отложенный промокод.
func (s *Store) RemovePromoCode() {
	s.mu.Lock()
	s.promo = nil
	s.mu.Unlock()
}

// CalculateShippingTax рассчитывает доставку и налог по индексу и текущей
// промежуточной сумме. Ошибка не затирает ранее рассчитанные значения.
func (s *Store) CalculateShippingTax(ctx context.Context, zipCode string) error {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()

	body := struct {
		ZipCode  string  `json:"zip_code"`
		Subtotal float64 `json:"subtotal"`
	}{ZipCode: zipCode, Subtotal: s.Subtotal()}

	var info model.ShippingTaxInfo
	if err := s.client.Post(ctx, "/api/cart/shipping-tax", body, &info, true); err != nil {
		s.setErr(errMessage(err, "failed to calculate shipping"))
		return err
	}

	s.mu.Lock()
	s.shippingTax = &info
	s.mu.Unlock()
	return nil
}

// ItemCount возвращает суммарное количество товаров в корзине текущего режима.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	if s.mode == modeAuthenticated {
		if s.cart != nil {
			for _, it := range s.cart.Items {
				total += it.Quantity
			}
		}
		return total
	}

	for _, it := range s.guestItems {
		total += it.Quantity
	}
	return total
}

// Subtotal возвращает сумму корзины до налогов, доставки и скидок.
// Гостевые позиции без данных каталога дают ноль, а не ошибку.
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	if s.mode == modeAuthenticated {
		if s.cart != nil {
			for _, it := range s.cart.Items {
				total += it.Product.Price * float64(it.Quantity)
			}
		}
		return total
	}

	for _, it := range s.guestItems {
		if it.Product != nil {
			total += it.Product.Price * float64(it.Quantity)
		}
	}
	return total
}

// CheckoutItems собирает строки заказа для платёжной выгрузки из корзины
// текущего режима.
func (s *Store) CheckoutItems() []model.CheckoutItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []model.CheckoutItem
	if s.mode == modeAuthenticated {
		if s.cart == nil {
			return nil
		}
		for _, it := range s.cart.Items {
			items = append(items, model.CheckoutItem{
				ProductID:    it.ProductID,
				ProductName:  it.Product.Name,
				ProductPrice: it.Product.Price,
				Quantity:     it.Quantity,
				Subtotal:     it.Product.Price * float64(it.Quantity),
			})
		}
		return items
	}

	for _, it := range s.guestItems {
		line := model.CheckoutItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		}
		if it.Product != nil {
			line.ProductName = it.Product.Name
			line.ProductPrice = it.Product.Price
			line.Subtotal = it.Product.Price * float64(it.Quantity)
		}
		items = append(items, line)
	}
	return items
}

// Items возвращает копию позиций серверной корзины.
func (s *Store) Items() []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return nil
	}
	items := make([]model.CartItem, len(s.cart.Items))
	copy(items, s.cart.Items)
	return items
}

// GuestItems возвращает копию позиций гостевой корзины.
func (s *Store) GuestItems() []model.GuestCartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.GuestCartItem, len(s.guestItems))
	copy(items, s.guestItems)
	return items
}

// SavedItems возвращает копию отложенных позиций серверной корзины.
func (s *Store) SavedItems() []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return nil
	}
	items := make([]model.CartItem, len(s.cart.SavedItems))
	copy(items, s.cart.SavedItems)
	return items
}

// PromoCode возвращает отложенный промокод.
func (s *Store) PromoCode() *model.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promo == nil {
		return nil
	}
	p := *s.promo
	return &p
}

// ShippingTax возвращает последние рассчитанные доставку и налог.
func (s *Store) ShippingTax() *model.ShippingTaxInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shippingTax == nil {
		return nil
	}
	info := *s.shippingTax
	return &info
}

// Err возвращает сообщение последней ошибки.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Loading сообщает, выполняется ли сейчас сетевая операция.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// authenticatedCall выполняет серверную операцию над корзиной и заменяет
// локальный кеш ответом. В гостевом режиме немедленно возвращает nil.
func (s *Store) authenticatedCall(ctx context.Context, call func(context.Context, *model.Cart) error, fallback string) error {
	s.mu.Lock()
	if s.mode != modeAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.errMsg = ""
	s.mu.Unlock()

	var cart model.Cart
	if err := call(ctx, &cart); err != nil {
		s.setErr(errMessage(err, fallback))
		return err
	}

	s.mu.Lock()
	s.cart = &cart
	s.mu.Unlock()
	return nil
}

// enrichItems подтягивает данные каталога для позиций гостевой корзины.
// Промахи не считаются ошибкой: позиция остаётся без данных о товаре.
func (s *Store) enrichItems(ctx context.Context, items []model.GuestCartItem) []model.GuestCartItem {
	enriched := make([]model.GuestCartItem, 0, len(items))
	for _, it := range items {
		var product model.Product
		if err := s.client.Get(ctx, fmt.Sprintf("/api/products/%d", it.ProductID), &product, false); err != nil {
			s.logger.Debug("enrich guest cart item", zap.Int64("productID", it.ProductID), zap.Error(err))
			enriched = append(enriched, it)
			continue
		}
		it.Product = &product
		enriched = append(enriched, it)
	}
	return enriched
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

// errMessage выбирает человекочитаемое сообщение: серверную деталь для
// ошибок приложения либо запасной текст.
func errMessage(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
