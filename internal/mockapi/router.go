package mockapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
)

// SetupRouter собирает маршрутизатор мок-бэкенда. Эндпоинты корзины и
// оформления требуют bearer-токен; каталог, проверка промокода, расчёт
// доставки и гостевое оформление доступны без авторизации.
func SetupRouter(handler *Handler, auth *middleware.AuthMiddleware, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handler.Register)
			r.Post("/login", handler.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)
				r.Get("/me", handler.Me)
				r.Post("/logout", handler.Logout)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", handler.Products)
			r.Get("/{id}", handler.ProductByID)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Post("/promo/validate", handler.ValidatePromo)
			r.Post("/shipping-tax", handler.ShippingTax)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)
				r.Get("/", handler.GetCart)
				r.Delete("/", handler.ClearCart)
				r.Post("/items", handler.AddCartItem)
				r.Put("/items/{id}", handler.UpdateCartItem)
				r.Delete("/items/{id}", handler.RemoveCartItem)
				r.Post("/items/{id}/save", handler.SaveForLater)
				r.Post("/saved/{id}/restore", handler.RestoreSaved)
				r.Delete("/saved/{id}", handler.RemoveSaved)
				r.Post("/merge", handler.MergeCart)
			})
		})

		r.With(auth.Middleware).Post("/checkout/process", handler.ProcessCheckout)
		r.Post("/guest-checkout/process", handler.ProcessGuestCheckout)
	})

	return r
}
