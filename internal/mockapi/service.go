// Package mockapi реализует мок-бэкенд витрины: пользователи, каталог,
// корзины и оформление заказов целиком в памяти процесса.
package mockapi

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

var (
	// ErrUserExists возвращается при регистрации занятого имени пользователя.
	ErrUserExists = errors.New("mockapi: username already registered")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("mockapi: incorrect username or password")
	// ErrUserNotFound возвращается, когда пользователь с таким идентификатором не существует.
	ErrUserNotFound = errors.New("mockapi: user not found")
	// ErrEmailExists возвращается при регистрации занятого адреса почты.
	ErrEmailExists = errors.New("mockapi: email already registered")
	// ErrProductNotFound возвращается, когда товара нет в каталоге.
	ErrProductNotFound = errors.New("mockapi: product not found")
	// ErrItemNotFound возвращается, когда позиции нет в корзине.
	ErrItemNotFound = errors.New("mockapi: cart item not found")
	// ErrInsufficientStock возвращается, когда запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("mockapi: insufficient stock")
)

// ValidationError описывает отклонённую заявку на оформление заказа.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

type userRecord struct {
	user     model.User
	password string
}

type cartState struct {
	id         int64
	items      []model.CartItem
	saved      []model.CartItem
	nextItemID int64
}

// Service хранит всё состояние мок-бэкенда в памяти.
type Service struct {
	mu sync.Mutex

	usersByName  map[string]*userRecord
	usersByEmail map[string]*userRecord
	usersByID    map[int64]*userRecord
	nextUserID   int64

	catalog     []model.Product
	productByID map[int64]*model.Product

	carts      map[int64]*cartState
	nextCartID int64

	nextOrderID int64
}

// NewService создаёт сервис с предзаполненным каталогом товаров.
func NewService() *Service {
	s := &Service{
		usersByName:  make(map[string]*userRecord),
		usersByEmail: make(map[string]*userRecord),
		usersByID:    make(map[int64]*userRecord),
		nextUserID:   1,
		productByID: make(map[int64]*model.Product),
		carts:       make(map[int64]*cartState),
		nextCartID:  1,
		nextOrderID: 1000,
	}

	s.catalog = seedCatalog()
	for i := range s.catalog {
		s.productByID[s.catalog[i].ID] = &s.catalog[i]
	}

	return s
}

// Register создаёт нового пользователя.
func (s *Service) Register(creds model.RegisterCredentials) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByName[creds.Username]; ok {
		return model.User{}, ErrUserExists
	}
	if _, ok := s.usersByEmail[creds.Email]; ok {
		return model.User{}, ErrEmailExists
	}

	rec := &userRecord{
		user: model.User{
			ID:         s.nextUserID,
			Username:   creds.Username,
			Email:      creds.Email,
			IsActive:   true,
			IsVerified: false,
			CreatedAt:  time.Now().UTC(),
		},
		password: creds.Password,
	}
	s.nextUserID++

	s.usersByName[creds.Username] = rec
	s.usersByEmail[creds.Email] = rec
	s.usersByID[rec.user.ID] = rec

	return rec.user, nil
}

// Authenticate проверяет пару логин/пароль и возвращает пользователя.
func (s *Service) Authenticate(creds model.Credentials) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.usersByName[creds.Username]
	if !ok || rec.password != creds.Password {
		return model.User{}, ErrInvalidCredentials
	}

	return rec.user, nil
}

// UserByID возвращает пользователя по идентификатору.
func (s *Service) UserByID(id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.usersByID[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return rec.user, nil
}

// ProductQuery описывает фильтры, сортировку и страницу выборки каталога.
type ProductQuery struct {
	Category  model.ProductCategory
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Products возвращает страницу каталога с учётом фильтров и сортировки.
func (s *Service) Products(q ProductQuery) model.ProductList {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))

	products := make([]model.Product, 0, len(s.catalog))
	for _, p := range s.catalog {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, p)
	}

	desc := q.SortOrder == "desc"
	switch q.SortBy {
	case "price":
		sort.SliceStable(products, func(i, j int) bool {
			if desc {
				return products[i].Price > products[j].Price
			}
			return products[i].Price < products[j].Price
		})
	case "name":
		sort.SliceStable(products, func(i, j int) bool {
			if desc {
				return products[i].Name > products[j].Name
			}
			return products[i].Name < products[j].Name
		})
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	total := len(products)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return model.ProductList{
		Products:   products[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// Product возвращает товар каталога по идентификатору.
func (s *Service) Product(id int64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productByID[id]
	if !ok {
		return model.Product{}, ErrProductNotFound
	}
	return *p, nil
}

// Cart возвращает корзину пользователя, создавая пустую при первом обращении.
func (s *Service) Cart(userID int64) model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.cartLocked(userID))
}

// AddItem добавляет товар в корзину пользователя. Повторное добавление
// увеличивает количество существующей позиции.
func (s *Service) AddItem(userID, productID int64, quantity int) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.productByID[productID]
	if !ok {
		return model.Cart{}, ErrProductNotFound
	}

	c := s.cartLocked(userID)
	for i := range c.items {
		if c.items[i].ProductID == productID {
			if c.items[i].Quantity+quantity > product.Stock {
				return model.Cart{}, ErrInsufficientStock
			}
			c.items[i].Quantity += quantity
			return s.snapshotLocked(c), nil
		}
	}

	if quantity > product.Stock {
		return model.Cart{}, ErrInsufficientStock
	}

	c.items = append(c.items, model.CartItem{
		ID:        c.nextItemID,
		ProductID: productID,
		Quantity:  quantity,
		Product:   *product,
	})
	c.nextItemID++

	return s.snapshotLocked(c), nil
}

// UpdateItem изменяет количество позиции. Неположительное количество удаляет позицию.
func (s *Service) UpdateItem(userID, itemID int64, quantity int) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	for i := range c.items {
		if c.items[i].ID == itemID {
			if quantity < 1 {
				c.items = append(c.items[:i], c.items[i+1:]...)
				return s.snapshotLocked(c), nil
			}
			if product, ok := s.productByID[c.items[i].ProductID]; ok && quantity > product.Stock {
				return model.Cart{}, ErrInsufficientStock
			}
			c.items[i].Quantity = quantity
			return s.snapshotLocked(c), nil
		}
	}

	return model.Cart{}, ErrItemNotFound
}

// RemoveItem удаляет позицию из корзины.
func (s *Service) RemoveItem(userID, itemID int64) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	for i := range c.items {
		if c.items[i].ID == itemID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return s.snapshotLocked(c), nil
		}
	}

	return model.Cart{}, ErrItemNotFound
}

// ClearCart удаляет все позиции корзины, включая отложенные.
func (s *Service) ClearCart(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	c.items = nil
	c.saved = nil
}

// MergeItems переносит позиции гостевой корзины в серверную. Количество
// совпадающих товаров складывается, неизвестные товары пропускаются.
func (s *Service) MergeItems(userID int64, items []model.GuestCartItem) model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
merge:
	for _, gi := range items {
		product, ok := s.productByID[gi.ProductID]
		if !ok || gi.Quantity < 1 {
			continue
		}
		for i := range c.items {
			if c.items[i].ProductID == gi.ProductID {
				c.items[i].Quantity += gi.Quantity
				continue merge
			}
		}
		c.items = append(c.items, model.CartItem{
			ID:        c.nextItemID,
			ProductID: gi.ProductID,
			Quantity:  gi.Quantity,
			Product:   *product,
		})
		c.nextItemID++
	}

	return s.snapshotLocked(c)
}

// SaveForLater переносит позицию из корзины в отложенные.
func (s *Service) SaveForLater(userID, itemID int64) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	for i := range c.items {
		if c.items[i].ID == itemID {
			item := c.items[i]
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.saved = append(c.saved, item)
			return s.snapshotLocked(c), nil
		}
	}

	return model.Cart{}, ErrItemNotFound
}

// RestoreSaved возвращает отложенную позицию в корзину.
func (s *Service) RestoreSaved(userID, savedID int64) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	for i := range c.saved {
		if c.saved[i].ID == savedID {
			item := c.saved[i]
			c.saved = append(c.saved[:i], c.saved[i+1:]...)
			c.items = append(c.items, item)
			return s.snapshotLocked(c), nil
		}
	}

	return model.Cart{}, ErrItemNotFound
}

// RemoveSaved удаляет отложенную позицию.
func (s *Service) RemoveSaved(userID, savedID int64) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	for i := range c.saved {
		if c.saved[i].ID == savedID {
			c.saved = append(c.saved[:i], c.saved[i+1:]...)
			return s.snapshotLocked(c), nil
		}
	}

	return model.Cart{}, ErrItemNotFound
}

// ValidatePromo проверяет промокод по таблице действующих кодов.
// Неизвестный код не является ошибкой: ответ помечается как недействительный.
func (s *Service) ValidatePromo(code string) model.PromoCode {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	discount, ok := promoTable[normalized]
	if !ok {
		return model.PromoCode{
			Code:    code,
			IsValid: false,
			Message: "Invalid or expired promo code",
		}
	}

	return model.PromoCode{
		Code:            normalized,
		IsValid:         true,
		DiscountPercent: discount,
	}
}

// ShippingTax рассчитывает доставку и налог. Доставка бесплатна от 100,
// иначе стоит фиксированные 9.99; ставка налога зависит от первой цифры индекса.
func (s *Service) ShippingTax(zipCode string, subtotal float64) model.ShippingTaxInfo {
	shipping := 9.99
	if subtotal >= freeShippingThreshold {
		shipping = 0
	}

	rate := defaultTaxRate
	if zipCode != "" {
		if r, ok := taxRateByZipPrefix[zipCode[:1]]; ok {
			rate = r
		}
	}

	return model.ShippingTaxInfo{
		ShippingAmount: shipping,
		TaxAmount:      roundCents(subtotal * rate),
	}
}

// ProcessCheckout проверяет и проводит заказ. Для авторизованного заказа
// корзина пользователя очищается, остатки товаров уменьшаются.
func (s *Service) ProcessCheckout(req model.CheckoutRequest, userID int64, guest bool) (model.CheckoutResponse, error) {
	if err := validateCheckout(req, guest); err != nil {
		return model.CheckoutResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range req.Items {
		product, ok := s.productByID[item.ProductID]
		if !ok {
			return model.CheckoutResponse{}, &ValidationError{Reason: fmt.Sprintf("Product %d not found", item.ProductID)}
		}
		if product.Stock < item.Quantity {
			return model.CheckoutResponse{}, &ValidationError{Reason: fmt.Sprintf("Insufficient stock for product %d", item.ProductID)}
		}
	}

	expected := req.Subtotal - req.DiscountAmount + req.TaxAmount + req.ShippingAmount
	if req.GiftWrap {
		expected += giftWrapFee
	}
	if math.Abs(expected-req.TotalAmount) > 0.01 {
		return model.CheckoutResponse{}, &ValidationError{Reason: "Order total does not match order lines"}
	}

	for _, item := range req.Items {
		s.productByID[item.ProductID].Stock -= item.Quantity
	}

	if !guest {
		c := s.cartLocked(userID)
		c.items = nil
	}

	orderID := s.nextOrderID
	s.nextOrderID++

	return model.CheckoutResponse{
		OrderID:     orderID,
		OrderNumber: "ORD-" + strings.ToUpper(uuid.NewString()[:8]),
		Status:      "confirmed",
		Total:       req.TotalAmount,
	}, nil
}

func validateCheckout(req model.CheckoutRequest, guest bool) error {
	if len(req.Items) == 0 {
		return &ValidationError{Reason: "Order must contain at least one item"}
	}
	if guest && req.GuestEmail == "" {
		return &ValidationError{Reason: "Guest email is required"}
	}
	if err := validateAddress("Shipping", req.ShippingAddress); err != nil {
		return err
	}
	if !req.BillingIsSameAsShipping {
		if err := validateAddress("Billing", req.BillingAddress); err != nil {
			return err
		}
	}
	if req.CardLastFour == "" || req.CardBrand == "" {
		return &ValidationError{Reason: "Payment card details are incomplete"}
	}
	return nil
}

func validateAddress(kind string, addr model.Address) error {
	switch {
	case addr.FirstName == "" || addr.LastName == "":
		return &ValidationError{Reason: kind + " address requires a recipient name"}
	case addr.AddressLine1 == "" || addr.City == "" || addr.State == "":
		return &ValidationError{Reason: kind + " address is incomplete"}
	case addr.ZipCode == "":
		return &ValidationError{Reason: kind + " address requires a zip code"}
	}
	return nil
}

// cartLocked возвращает состояние корзины пользователя. Вызывается под s.mu.
func (s *Service) cartLocked(userID int64) *cartState {
	c, ok := s.carts[userID]
	if !ok {
		c = &cartState{id: s.nextCartID, nextItemID: 1}
		s.nextCartID++
		s.carts[userID] = c
	}
	return c
}

// snapshotLocked собирает независимую копию корзины. Вызывается под s.mu.
func (s *Service) snapshotLocked(c *cartState) model.Cart {
	cart := model.Cart{ID: c.id}
	cart.Items = make([]model.CartItem, len(c.items))
	copy(cart.Items, c.items)
	if len(c.saved) > 0 {
		cart.SavedItems = make([]model.CartItem, len(c.saved))
		copy(cart.SavedItems, c.saved)
	}
	return cart
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
