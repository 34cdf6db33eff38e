// Package main проигрывает показательную сессию покупателя: гостевая
// корзина, регистрация с переносом корзины, промокод, доставка и
// пятишаговое оформление заказа против мок-бэкенда.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/api"
	"github.com/mmeshcher/storefront-system/internal/auth"
	"github.com/mmeshcher/storefront-system/internal/cart"
	"github.com/mmeshcher/storefront-system/internal/checkout"
	"github.com/mmeshcher/storefront-system/internal/config"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/storage"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	st, err := storage.New(cfg.StateDir)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	apiClient := api.NewClient(cfg.APIAddress, st)
	checkoutClient := api.NewClient(cfg.CheckoutAddress, st)

	authStore := auth.NewStore(apiClient, st, logger)
	cartStore := cart.NewStore(apiClient, st, logger)
	machine := checkout.NewMachine(checkoutClient, cartStore, authStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Смена статуса авторизации переключает режим корзины: вход переносит
	// гостевую корзину на сервер, выход возвращает гостевую.
	authStore.SetOnChange(func(authenticated bool) {
		if authenticated {
			if err := cartStore.OnLogin(ctx); err != nil {
				sugar.Errorw("switch cart to authenticated mode", "error", err.Error())
			}
			return
		}
		cartStore.OnLogout(ctx)
	})

	if err := authStore.Init(ctx); err != nil {
		sugar.Fatalw("session restore error", "error", err.Error())
	}
	if err := cartStore.Init(ctx, authStore.IsAuthenticated()); err != nil {
		sugar.Fatalw("cart initialization error", "error", err.Error())
	}

	// Гость смотрит каталог и наполняет корзину.
	var list model.ProductList
	if err := apiClient.Get(ctx, "/api/products", &list, false); err != nil {
		sugar.Fatalw("catalog error", "error", err.Error())
	}
	sugar.Infow("catalog loaded", "products", list.Total)

	if err := cartStore.AddToCart(ctx, 5, 2); err != nil {
		sugar.Fatalw("add to cart error", "error", err.Error())
	}
	if err := cartStore.AddToCart(ctx, 6, 1); err != nil {
		sugar.Fatalw("add to cart error", "error", err.Error())
	}
	sugar.Infow("guest cart filled", "items", cartStore.ItemCount(), "subtotal", cartStore.Subtotal())

	// Регистрация с автоматическим входом; гостевая корзина переносится на сервер.
	username := fmt.Sprintf("shopper%d", time.Now().UnixNano())
	err = authStore.Register(ctx, model.RegisterCredentials{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		sugar.Fatalw("registration error", "error", err.Error())
	}
	sugar.Infow("registered and logged in",
		"username", username,
		"items", cartStore.ItemCount(),
		"subtotal", cartStore.Subtotal(),
	)

	if err := cartStore.ApplyPromoCode(ctx, "WELCOME10"); err != nil {
		sugar.Fatalw("promo code error", "error", err.Error())
	}

	shipping := model.Address{
		FirstName:    "Jamie",
		LastName:     "Rivera",
		AddressLine1: "12 Harbor Way",
		City:         "Portland",
		State:        "OR",
		ZipCode:      "97201",
		Country:      "USA",
	}
	if err := cartStore.CalculateShippingTax(ctx, shipping.ZipCode); err != nil {
		sugar.Fatalw("shipping calculation error", "error", err.Error())
	}
	if info := cartStore.ShippingTax(); info != nil {
		sugar.Infow("shipping calculated", "shipping", info.ShippingAmount, "tax", info.TaxAmount)
	}

	// Мастер оформления: корзина -> доставка -> счёт -> платёж -> подтверждение.
	machine.GoToNextStep()
	machine.Update(checkout.Patch{ShippingAddress: &shipping})

	machine.GoToNextStep()

	machine.GoToNextStep()
	machine.Update(checkout.Patch{
		Payment: &model.PaymentInfo{
			CardNumber:     "4111111111111111",
			ExpiryMonth:    "12",
			ExpiryYear:     "2027",
			CVV:            "123",
			CardholderName: "Jamie Rivera",
		},
	})

	if err := machine.SubmitPayment(ctx); err != nil {
		sugar.Fatalw("checkout error", "error", machine.Err())
	}

	state := machine.State()
	sugar.Infow("order placed", "orderNumber", state.OrderNumber, "step", state.Step)

	authStore.Logout(ctx)
	sugar.Infow("logged out", "items", cartStore.ItemCount())
}
