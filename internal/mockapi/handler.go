package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
)

// Handler обрабатывает HTTP-запросы мок-бэкенда.
type Handler struct {
	service *Service
	auth    *middleware.AuthMiddleware
	logger  *zap.Logger
}

// NewHandler создаёт новый обработчик с указанным сервисом.
func NewHandler(service *Service, auth *middleware.AuthMiddleware, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		auth:    auth,
		logger:  logger,
	}
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds model.RegisterCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if creds.Username == "" || creds.Email == "" || creds.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Username, email and password are required")
		return
	}

	user, err := h.service.Register(creds)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			writeDetail(w, http.StatusConflict, "Username already registered")
		case errors.Is(err, ErrEmailExists):
			writeDetail(w, http.StatusConflict, "Email already registered")
		default:
			h.logger.Error("register user", zap.Error(err))
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login обрабатывает вход пользователя и выдаёт bearer-токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Authenticate(creds)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Incorrect username or password")
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{
		AccessToken: h.auth.TokenFor(user.ID),
		TokenType:   "bearer",
		ExpiresIn:   3600,
		User:        user,
	})
}

// Me возвращает профиль пользователя по bearer-токену.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.service.UserByID(userID)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Logout завершает серверную сессию. Токены не хранятся, поэтому
// операция сводится к подтверждению.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Products возвращает страницу каталога с фильтрами, поиском и сортировкой.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := ProductQuery{
		Category:  model.ProductCategory(params.Get("category")),
		Search:    params.Get("search"),
		SortBy:    params.Get("sort_by"),
		SortOrder: params.Get("sort_order"),
	}
	q.Page, _ = strconv.Atoi(params.Get("page"))
	q.PageSize, _ = strconv.Atoi(params.Get("page_size"))

	writeJSON(w, http.StatusOK, h.service.Products(q))
}

// ProductByID возвращает один товар каталога.
func (h *Handler) ProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	product, err := h.service.Product(id)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, h.service.Cart(userID))
}

// AddCartItem добавляет товар в корзину текущего пользователя.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var body struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Quantity < 1 {
		writeDetail(w, http.StatusUnprocessableEntity, "Quantity must be a positive integer")
		return
	}

	cart, err := h.service.AddItem(userID, body.ProductID, body.Quantity)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			writeDetail(w, http.StatusBadRequest, "Insufficient stock")
			return
		}
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// UpdateCartItem изменяет количество позиции корзины.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cart, err := h.service.UpdateItem(userID, itemID, body.Quantity)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			writeDetail(w, http.StatusBadRequest, "Insufficient stock")
			return
		}
		writeDetail(w, http.StatusNotFound, "Cart item not found")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// RemoveCartItem удаляет позицию корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	cart, err := h.service.RemoveItem(userID, itemID)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Cart item not found")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// ClearCart удаляет все позиции корзины.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	h.service.ClearCart(userID)
	w.WriteHeader(http.StatusNoContent)
}

// MergeCart переносит позиции гостевой корзины в серверную.
func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var body struct {
		Items []model.GuestCartItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, h.service.MergeItems(userID, body.Items))
}

// SaveForLater откладывает позицию корзины.
func (h *Handler) SaveForLater(w http.ResponseWriter, r *http.Request) {
	h.savedItemCall(w, r, h.service.SaveForLater)
}

// RestoreSaved возвращает отложенную позицию в корзину.
func (h *Handler) RestoreSaved(w http.ResponseWriter, r *http.Request) {
	h.savedItemCall(w, r, h.service.RestoreSaved)
}

// RemoveSaved удаляет отложенную позицию.
func (h *Handler) RemoveSaved(w http.ResponseWriter, r *http.Request) {
	h.savedItemCall(w, r, h.service.RemoveSaved)
}

func (h *Handler) savedItemCall(w http.ResponseWriter, r *http.Request, call func(int64, int64) (model.Cart, error)) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	cart, err := call(userID, itemID)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Cart item not found")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// ValidatePromo проверяет промокод.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, h.service.ValidatePromo(body.Code))
}

// ShippingTax рассчитывает доставку и налог по индексу и промежуточной сумме.
func (h *Handler) ShippingTax(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ZipCode  string  `json:"zip_code"`
		Subtotal float64 `json:"subtotal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, h.service.ShippingTax(body.ZipCode, body.Subtotal))
}

// ProcessCheckout проводит заказ авторизованного пользователя.
func (h *Handler) ProcessCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeCheckoutError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	h.processCheckout(w, r, userID, false)
}

// ProcessGuestCheckout проводит гостевой заказ.
func (h *Handler) ProcessGuestCheckout(w http.ResponseWriter, r *http.Request) {
	h.processCheckout(w, r, 0, true)
}

func (h *Handler) processCheckout(w http.ResponseWriter, r *http.Request, userID int64, guest bool) {
	var req model.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCheckoutError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.ProcessCheckout(req, userID, guest)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			writeCheckoutError(w, http.StatusBadRequest, vErr.Reason)
			return
		}
		h.logger.Error("process checkout", zap.Error(err))
		writeCheckoutError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("order placed",
		zap.Int64("orderID", resp.OrderID),
		zap.String("orderNumber", resp.OrderNumber),
		zap.Float64("total", resp.Total),
		zap.Bool("guest", guest),
	)

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDetail отправляет ошибку в формате {"detail": ...}, который
// используют эндпоинты аутентификации, каталога и корзины.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeCheckoutError отправляет ошибку в формате {"error": ...}, который
// используют эндпоинты оформления заказа.
func writeCheckoutError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
