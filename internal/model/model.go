// Package model содержит доменные сущности сервиса витрины.
package model

import "time"

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// Credentials содержит данные для входа пользователя.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterCredentials содержит данные для регистрации нового пользователя.
type RegisterCredentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse описывает ответ сервера на успешный вход.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        User   `json:"user"`
}

// ProductCategory описывает категорию товара в каталоге.
type ProductCategory string

const (
	CategoryLuggage           ProductCategory = "luggage"
	CategoryBags              ProductCategory = "bags"
	CategoryTravelAccessories ProductCategory = "travel_accessories"
	CategoryDigitalNomad      ProductCategory = "digital_nomad"
)

// Product описывает товар каталога.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Category    ProductCategory `json:"category"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductList описывает страницу каталога товаров.
type ProductList struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// CartItem описывает позицию серверной корзины.
type CartItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// Cart описывает серверную корзину авторизованного пользователя.
type Cart struct {
	ID         int64      `json:"id"`
	Items      []CartItem `json:"items"`
	SavedItems []CartItem `json:"saved_items,omitempty"`
}

// GuestCartItem описывает позицию гостевой корзины. Поле Product заполняется
// в памяти из каталога и не попадает в долговременное хранилище.
type GuestCartItem struct {
	ProductID int64    `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// PromoCode описывает результат проверки промокода.
type PromoCode struct {
	Code            string  `json:"code"`
	IsValid         bool    `json:"is_valid"`
	DiscountPercent float64 `json:"discount_percent"`
	Message         string  `json:"message,omitempty"`
}

// ShippingTaxInfo содержит стоимость доставки и налог, рассчитанные
// по почтовому индексу и промежуточной сумме корзины.
type ShippingTaxInfo struct {
	ShippingAmount float64 `json:"shipping_amount"`
	TaxAmount      float64 `json:"tax_amount"`
}

// Address описывает почтовый адрес доставки или оплаты.
type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

// PaymentInfo содержит платёжные данные, введённые на шаге оплаты.
// Структура живёт только в памяти процесса и никогда не сериализуется:
// наружу уходят только бренд карты и последние четыре цифры.
type PaymentInfo struct {
	CardNumber     string
	ExpiryMonth    string
	ExpiryYear     string
	CVV            string
	CardholderName string
}

// CheckoutItem описывает строку заказа в платёжной выгрузке.
type CheckoutItem struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductPrice float64 `json:"product_price"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
}

// CheckoutRequest описывает полную выгрузку оформления заказа.
type CheckoutRequest struct {
	GuestEmail              string         `json:"guest_email,omitempty"`
	ShippingAddress         Address        `json:"shipping_address"`
	BillingAddress          Address        `json:"billing_address"`
	BillingIsSameAsShipping bool           `json:"billing_same_as_shipping"`
	IsGift                  bool           `json:"is_gift"`
	GiftMessage             string         `json:"gift_message,omitempty"`
	GiftWrap                bool           `json:"gift_wrap"`
	PaymentMethod           string         `json:"payment_method"`
	CardLastFour            string         `json:"card_last_four"`
	CardBrand               string         `json:"card_brand"`
	Items                   []CheckoutItem `json:"items"`
	Subtotal                float64        `json:"subtotal"`
	DiscountAmount          float64        `json:"discount_amount"`
	PromoCode               string         `json:"promo_code,omitempty"`
	TaxAmount               float64        `json:"tax_amount"`
	ShippingAmount          float64        `json:"shipping_amount"`
	TotalAmount             float64        `json:"total_amount"`
}

// CheckoutResponse описывает ответ сервиса оформления на успешный заказ.
type CheckoutResponse struct {
	OrderID     int64   `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
}
