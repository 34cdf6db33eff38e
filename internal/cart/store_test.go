package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/api"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/storage"
)

func newTestStore(t *testing.T, handler http.Handler) (*Store, *storage.Storage, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	st, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New error: %v", err)
	}

	logger := zap.NewNop()
	client := api.NewClient(ts.URL, api.StaticToken("test-token"))

	return NewStore(client, st, logger), st, ts
}

func testCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// каталог из двух товаров: id=1 по 10.00, id=2 по 25.50
func catalogHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/products/1":
			writeJSON(t, w, model.Product{ID: 1, Name: "Carry-On Spinner", Price: 10.00, Stock: 5})
		case "/api/products/2":
			writeJSON(t, w, model.Product{ID: 2, Name: "Packing Cubes", Price: 25.50, Stock: 5})
		default:
			http.Error(w, `{"detail":"Product not found"}`, http.StatusNotFound)
		}
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestAddToCart_GuestModeAccumulatesAndEnriches(t *testing.T) {
	s, _, _ := newTestStore(t, catalogHandler(t))
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	if err := s.AddToCart(ctx, 1, 2); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := s.AddToCart(ctx, 2, 1); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := s.AddToCart(ctx, 1, 1); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}

	if got := s.ItemCount(); got != 4 {
		t.Fatalf("ItemCount = %d, want 4", got)
	}
	// 3 × 10.00 + 1 × 25.50
	if got := s.Subtotal(); got != 55.50 {
		t.Fatalf("Subtotal = %v, want 55.50", got)
	}
}

func TestAddToCart_RejectsNonPositiveQuantity(t *testing.T) {
	s, _, _ := newTestStore(t, catalogHandler(t))
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	if err := s.AddToCart(ctx, 1, 0); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	if got := s.ItemCount(); got != 0 {
		t.Fatalf("ItemCount = %d, want 0", got)
	}
}

func TestSubtotal_SkipsUnenrichedItems(t *testing.T) {
	// товар 99 каталогу неизвестен: позиция остаётся, но в сумму не входит
	s, _, _ := newTestStore(t, catalogHandler(t))
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	if err := s.AddToCart(ctx, 1, 2); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := s.AddToCart(ctx, 99, 3); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}

	if got := s.ItemCount(); got != 5 {
		t.Fatalf("ItemCount = %d, want 5", got)
	}
	if got := s.Subtotal(); got != 20.00 {
		t.Fatalf("Subtotal = %v, want 20.00", got)
	}

	items := s.GuestItems()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[1].Product != nil {
		t.Fatalf("unknown product must stay unenriched")
	}
}

func TestOnLogin_MergesExactlyOnce(t *testing.T) {
	var mergeCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/products/", catalogHandler(t))
	mux.HandleFunc("/api/cart/merge", func(w http.ResponseWriter, r *http.Request) {
		mergeCalls.Add(1)

		var body struct {
			Items []model.GuestCartItem `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode merge body: %v", err)
		}
		if len(body.Items) != 2 {
			t.Fatalf("merge items = %d, want 2", len(body.Items))
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.Cart{ID: 1})
	})

	s, st, _ := newTestStore(t, mux)
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := s.AddToCart(ctx, 1, 2); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := s.AddToCart(ctx, 2, 1); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}

	if err := s.OnLogin(ctx); err != nil {
		t.Fatalf("OnLogin error: %v", err)
	}

	if got := mergeCalls.Load(); got != 1 {
		t.Fatalf("merge calls = %d, want 1", got)
	}

	stored, err := st.GuestCart()
	if err != nil {
		t.Fatalf("GuestCart error: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("guest cart after merge = %d items, want 0", len(stored))
	}

	// повторный вход с пустой гостевой корзиной переноса не вызывает
	if err := s.OnLogin(ctx); err != nil {
		t.Fatalf("second OnLogin error: %v", err)
	}
	if got := mergeCalls.Load(); got != 1 {
		t.Fatalf("merge calls after second login = %d, want 1", got)
	}
}

func TestOnLogin_MergeFailureKeepsGuestCart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/products/", catalogHandler(t))
	mux.HandleFunc("/api/cart/merge", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"merge failed"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.Cart{ID: 1})
	})

	s, st, _ := newTestStore(t, mux)
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := s.AddToCart(ctx, 1, 1); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}

	if err := s.OnLogin(ctx); err != nil {
		t.Fatalf("OnLogin error: %v", err)
	}

	stored, err := st.GuestCart()
	if err != nil {
		t.Fatalf("GuestCart error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("guest cart after failed merge = %d items, want 1", len(stored))
	}
}

func TestUpdateCartItem_GuestModeIsNoOp(t *testing.T) {
	var calls atomic.Int64

	s, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/cart") {
			calls.Add(1)
		}
		catalogHandler(t)(w, r)
	}))
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	if err := s.UpdateCartItem(ctx, 1, 5); err != nil {
		t.Fatalf("UpdateCartItem error: %v", err)
	}
	if err := s.RemoveCartItem(ctx, 1); err != nil {
		t.Fatalf("RemoveCartItem error: %v", err)
	}
	if err := s.SaveForLater(ctx, 1); err != nil {
		t.Fatalf("SaveForLater error: %v", err)
	}
	if err := s.RestoreSavedItem(ctx, 1); err != nil {
		t.Fatalf("RestoreSavedItem error: %v", err)
	}
	if err := s.RemoveSavedItem(ctx, 1); err != nil {
		t.Fatalf("RemoveSavedItem error: %v", err)
	}

	if got := calls.Load(); got != 0 {
		t.Fatalf("cart API calls in guest mode = %d, want 0", got)
	}
}

func TestUpdateCartItem_AuthenticatedReplacesCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.Cart{ID: 1, Items: []model.CartItem{
			{ID: 10, ProductID: 1, Quantity: 1, Product: model.Product{ID: 1, Price: 10}},
		}})
	})
	mux.HandleFunc("/api/cart/items/10", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("method = %s, want PUT", r.Method)
		}
		writeJSON(t, w, model.Cart{ID: 1, Items: []model.CartItem{
			{ID: 10, ProductID: 1, Quantity: 4, Product: model.Product{ID: 1, Price: 10}},
		}})
	})

	s, _, _ := newTestStore(t, mux)
	ctx := testCtx(t)

	if err := s.Init(ctx, true); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := s.UpdateCartItem(ctx, 10, 4); err != nil {
		t.Fatalf("UpdateCartItem error: %v", err)
	}

	if got := s.ItemCount(); got != 4 {
		t.Fatalf("ItemCount = %d, want 4", got)
	}
	if got := s.Subtotal(); got != 40.0 {
		t.Fatalf("Subtotal = %v, want 40.0", got)
	}
}

func TestApplyPromoCode_InvalidCodeLeavesStateUnset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart/promo/validate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode promo body: %v", err)
		}
		writeJSON(t, w, model.PromoCode{
			Code:    body.Code,
			IsValid: false,
			Message: "Invalid or expired promo code",
		})
	})

	s, _, _ := newTestStore(t, mux)
	ctx := testCtx(t)

	err := s.ApplyPromoCode(ctx, "BADCODE")
	if err == nil {
		t.Fatalf("expected error for invalid promo code")
	}
	if !strings.Contains(err.Error(), "Invalid or expired promo code") {
		t.Fatalf("error = %q, want server message", err)
	}
	if s.PromoCode() != nil {
		t.Fatalf("promo code must stay unset after rejection")
	}
	if s.Err() != "Invalid or expired promo code" {
		t.Fatalf("Err = %q, want server message", s.Err())
	}
}

func TestApplyPromoCode_ValidCodeStoredAsPending(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart/promo/validate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.PromoCode{
			Code:            "WELCOME10",
			IsValid:         true,
			DiscountPercent: 10,
		})
	})

	s, _, _ := newTestStore(t, mux)
	ctx := testCtx(t)

	if err := s.ApplyPromoCode(ctx, "WELCOME10"); err != nil {
		t.Fatalf("ApplyPromoCode error: %v", err)
	}

	promo := s.PromoCode()
	if promo == nil || promo.Code != "WELCOME10" || promo.DiscountPercent != 10 {
		t.Fatalf("unexpected promo: %+v", promo)
	}
}

func TestCalculateShippingTax_ErrorPreservesPreviousValues(t *testing.T) {
	var fail atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart/shipping-tax", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, `{"detail":"rate service unavailable"}`, http.StatusBadGateway)
			return
		}
		writeJSON(t, w, model.ShippingTaxInfo{ShippingAmount: 9.99, TaxAmount: 1.20})
	})

	s, _, _ := newTestStore(t, mux)
	ctx := testCtx(t)

	if err := s.CalculateShippingTax(ctx, "94105"); err != nil {
		t.Fatalf("CalculateShippingTax error: %v", err)
	}

	fail.Store(true)

	if err := s.CalculateShippingTax(ctx, "10001"); err == nil {
		t.Fatalf("expected error from rate service")
	}

	info := s.ShippingTax()
	if info == nil || info.ShippingAmount != 9.99 || info.TaxAmount != 1.20 {
		t.Fatalf("previous shipping/tax lost: %+v", info)
	}
}

func TestClearCart_GuestClearsDurableCopy(t *testing.T) {
	s, st, _ := newTestStore(t, catalogHandler(t))
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := s.AddToCart(ctx, 1, 2); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}

	if err := s.ClearCart(ctx); err != nil {
		t.Fatalf("ClearCart error: %v", err)
	}

	if got := s.ItemCount(); got != 0 {
		t.Fatalf("ItemCount = %d, want 0", got)
	}
	stored, err := st.GuestCart()
	if err != nil {
		t.Fatalf("GuestCart error: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("durable guest cart = %d items, want 0", len(stored))
	}
}

func TestInit_GuestEnrichmentSurvivesReload(t *testing.T) {
	s, st, _ := newTestStore(t, catalogHandler(t))
	ctx := testCtx(t)

	if err := st.AddToGuestCart(2, 3); err != nil {
		t.Fatalf("AddToGuestCart error: %v", err)
	}

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	items := s.GuestItems()
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].Product == nil || items[0].Product.Name != "Packing Cubes" {
		t.Fatalf("item not enriched: %+v", items[0])
	}
	if got := s.Subtotal(); got != 76.50 {
		t.Fatalf("Subtotal = %v, want 76.50", got)
	}
}

func TestCheckoutItems_GuestMissingProductContributesZero(t *testing.T) {
	s, _, _ := newTestStore(t, catalogHandler(t))
	ctx := testCtx(t)

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := s.AddToCart(ctx, 1, 1); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := s.AddToCart(ctx, 99, 2); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}

	items := s.CheckoutItems()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Subtotal != 10.00 {
		t.Fatalf("items[0].Subtotal = %v, want 10.00", items[0].Subtotal)
	}
	if items[1].ProductName != "" || items[1].ProductPrice != 0 || items[1].Subtotal != 0 {
		t.Fatalf("unenriched line must contribute zero: %+v", items[1])
	}
}

func TestRefresh_GuestModeIsNoOp(t *testing.T) {
	var calls atomic.Int64

	s, _, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, fmt.Sprintf(`{"detail":"unexpected call to %s"}`, r.URL.Path), http.StatusTeapot)
	}))
	ctx := testCtx(t)

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}
