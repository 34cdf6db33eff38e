// Package checkout реализует пятишаговый мастер оформления заказа:
// корзина, доставка, оплата по счёту, платёж, подтверждение.
package checkout

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/api"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// Шаги мастера оформления.
const (
	StepCartReview   = 1
	StepDelivery     = 2
	StepBilling      = 3
	StepPayment      = 4
	StepConfirmation = 5
)

// giftWrapFee — фиксированная наценка за подарочную упаковку.
const giftWrapFee = 5.00

// ErrPaymentInvalid возвращается, когда платёжные данные не проходят
// локальную проверку; сетевой вызов при этом не выполняется.
var ErrPaymentInvalid = errors.New("checkout: invalid payment details")

// State описывает накопленное состояние мастера оформления.
type State struct {
	Step                    int
	GuestEmail              string
	ShippingAddress         model.Address
	BillingAddress          model.Address
	BillingIsSameAsShipping bool
	IsGift                  bool
	GiftMessage             string
	GiftWrap                bool
	Payment                 model.PaymentInfo
	OrderNumber             string
}

// Patch описывает частичное обновление состояния: заполненные поля
// переносятся, nil-поля не трогаются.
type Patch struct {
	GuestEmail              *string
	ShippingAddress         *model.Address
	BillingAddress          *model.Address
	BillingIsSameAsShipping *bool
	IsGift                  *bool
	GiftMessage             *string
	GiftWrap                *bool
	Payment                 *model.PaymentInfo
}

// CartReader — срез состояния корзины, нужный для сборки выгрузки заказа.
type CartReader interface {
	CheckoutItems() []model.CheckoutItem
	Subtotal() float64
	ShippingTax() *model.ShippingTaxInfo
	PromoCode() *model.PromoCode
}

// AuthReader сообщает статус авторизации текущей сессии.
type AuthReader interface {
	IsAuthenticated() bool
}

// Machine хранит состояние мастера оформления и выполняет отправку заказа.
type Machine struct {
	mu sync.Mutex

	client *api.Client
	cart   CartReader
	auth   AuthReader
	logger *zap.Logger

	state      State
	processing bool
	errMsg     string
}

// NewMachine создаёт мастер оформления поверх клиента сервиса оформления.
func NewMachine(client *api.Client, cart CartReader, auth AuthReader, logger *zap.Logger) *Machine {
	return &Machine{
		client: client,
		cart:   cart,
		auth:   auth,
		logger: logger,
		state:  initialState(),
	}
}

func initialState() State {
	return State{
		Step:                    StepCartReview,
		ShippingAddress:         model.Address{Country: "USA"},
		BillingAddress:          model.Address{Country: "USA"},
		BillingIsSameAsShipping: true,
	}
}

// State возвращает копию текущего состояния мастера.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err возвращает сообщение последней ошибки отправки.
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Processing сообщает, выполняется ли сейчас отправка заказа.
func (m *Machine) Processing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing
}

// Update применяет частичное обновление к состоянию мастера.
func (m *Machine) Update(p Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.GuestEmail != nil {
		m.state.GuestEmail = *p.GuestEmail
	}
	if p.ShippingAddress != nil {
		m.state.ShippingAddress = *p.ShippingAddress
	}
	if p.BillingAddress != nil {
		m.state.BillingAddress = *p.BillingAddress
	}
	if p.BillingIsSameAsShipping != nil {
		m.state.BillingIsSameAsShipping = *p.BillingIsSameAsShipping
	}
	if p.IsGift != nil {
		m.state.IsGift = *p.IsGift
	}
	if p.GiftMessage != nil {
		m.state.GiftMessage = *p.GiftMessage
	}
	if p.GiftWrap != nil {
		m.state.GiftWrap = *p.GiftWrap
	}
	if p.Payment != nil {
		m.state.Payment = *p.Payment
	}
}

// GoToNextStep переводит мастер на следующий шаг, не выходя за подтверждение.
func (m *Machine) GoToNextStep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Step < StepConfirmation {
		m.state.Step++
	}
}

// GoToPreviousStep возвращает мастер на предыдущий шаг, не раньше корзины.
func (m *Machine) GoToPreviousStep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Step > StepCartReview {
		m.state.Step--
	}
}

// Reset возвращает мастер в исходное состояние. Используется после
// завершённого или брошенного оформления.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = initialState()
	m.errMsg = ""
}

// SubmitPayment собирает выгрузку заказа из накопленного состояния и
// отправляет её в сервис оформления. При успехе сохраняет номер заказа и
// переходит к подтверждению; при неудаче остаётся на шаге оплаты.
func (m *Machine) SubmitPayment(ctx context.Context) error {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return errors.New("checkout: submission already in progress")
	}
	state := m.state
	m.processing = true
	m.errMsg = ""
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.processing = false
		m.mu.Unlock()
	}()

	if err := validatePayment(state.Payment); err != nil {
		m.setErr(err.Error())
		return err
	}

	authenticated := m.auth.IsAuthenticated()
	payload := m.buildRequest(state, authenticated)

	path := "/api/guest-checkout/process"
	if authenticated {
		path = "/api/checkout/process"
	}

	var resp model.CheckoutResponse
	if err := m.client.Post(ctx, path, payload, &resp, authenticated); err != nil {
		msg := "Failed to process checkout"
		if api.IsTransportError(err) {
			msg = "Unable to connect to checkout service. The service may be unavailable. Please try again later."
		} else {
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Detail != "" {
				msg = apiErr.Detail
			}
		}
		m.setErr(msg)
		m.logger.Error("checkout submission failed",
			zap.Bool("authenticated", authenticated),
			zap.Error(err))
		return err
	}

	m.mu.Lock()
	m.state.OrderNumber = resp.OrderNumber
	if m.state.Step < StepConfirmation {
		m.state.Step++
	}
	m.mu.Unlock()

	m.logger.Info("order placed",
		zap.String("orderNumber", resp.OrderNumber),
		zap.Float64("total", resp.Total))
	return nil
}

// buildRequest собирает платёжную выгрузку. Адрес оплаты копируется из
// адреса доставки, когда установлен соответствующий флаг; полные данные
// карты в выгрузку не попадают.
func (m *Machine) buildRequest(state State, authenticated bool) model.CheckoutRequest {
	subtotal := m.cart.Subtotal()

	var taxAmount, shippingAmount float64
	if st := m.cart.ShippingTax(); st != nil {
		taxAmount = st.TaxAmount
		shippingAmount = st.ShippingAmount
	}

	total := subtotal + taxAmount + shippingAmount
	if state.GiftWrap {
		total += giftWrapFee
	}

	billing := state.BillingAddress
	if state.BillingIsSameAsShipping {
		billing = state.ShippingAddress
	}

	req := model.CheckoutRequest{
		ShippingAddress:         state.ShippingAddress,
		BillingAddress:          billing,
		BillingIsSameAsShipping: state.BillingIsSameAsShipping,
		IsGift:                  state.IsGift,
		GiftMessage:             state.GiftMessage,
		GiftWrap:                state.GiftWrap,
		PaymentMethod:           "credit_card",
		CardLastFour:            lastFour(state.Payment.CardNumber),
		CardBrand:               cardBrand(state.Payment.CardNumber),
		Items:                   m.cart.CheckoutItems(),
		Subtotal:                subtotal,
		DiscountAmount:          0,
		TaxAmount:               taxAmount,
		ShippingAmount:          shippingAmount,
		TotalAmount:             total,
	}

	if !authenticated && state.GuestEmail != "" {
		req.GuestEmail = state.GuestEmail
	}
	if promo := m.cart.PromoCode(); promo != nil {
		req.PromoCode = promo.Code
	}

	return req
}

func validatePayment(p model.PaymentInfo) error {
	if !validation.IsValidCardNumber(p.CardNumber) {
		return ErrPaymentInvalid
	}
	if !validation.IsValidCVV(p.CVV) {
		return ErrPaymentInvalid
	}
	if p.CardholderName == "" || p.ExpiryMonth == "" || p.ExpiryYear == "" {
		return ErrPaymentInvalid
	}
	return nil
}

// cardBrand определяет бренд карты по первой цифре номера.
func cardBrand(cardNumber string) string {
	if cardNumber == "" {
		return "Unknown"
	}
	switch cardNumber[0] {
	case '4':
		return "Visa"
	case '5':
		return "Mastercard"
	case '3':
		return "Amex"
	default:
		return "Unknown"
	}
}

func lastFour(cardNumber string) string {
	if len(cardNumber) < 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}

func (m *Machine) setErr(msg string) {
	m.mu.Lock()
	m.errMsg = msg
	m.mu.Unlock()
}
