package mockapi

import (
	"time"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const (
	freeShippingThreshold = 100.0
	defaultTaxRate        = 0.06
	giftWrapFee           = 5.00
)

// promoTable содержит действующие промокоды и их скидку в процентах.
var promoTable = map[string]float64{
	"WELCOME10": 10,
	"TRAVEL20":  20,
}

// taxRateByZipPrefix задаёт ставку налога по первой цифре почтового индекса.
var taxRateByZipPrefix = map[string]float64{
	"0": 0.0625,
	"1": 0.08875,
	"3": 0.07,
	"6": 0.0825,
	"9": 0.0725,
}

// seedCatalog возвращает стартовый каталог товаров для путешествий.
func seedCatalog() []model.Product {
	now := time.Now().UTC()

	products := []model.Product{
		{
			ID:          1,
			Name:        "Voyager Carry-On Spinner",
			Description: "Lightweight 22-inch carry-on with 360-degree spinner wheels and TSA lock.",
			Price:       189.99,
			Category:    model.CategoryLuggage,
			ImageURL:    "/images/voyager-carry-on.jpg",
			Stock:       25,
		},
		{
			ID:          2,
			Name:        "Atlas Checked Hardshell 28\"",
			Description: "Expandable polycarbonate checked suitcase with compression straps.",
			Price:       249.99,
			Category:    model.CategoryLuggage,
			ImageURL:    "/images/atlas-checked.jpg",
			Stock:       18,
		},
		{
			ID:          3,
			Name:        "Everyday Travel Backpack",
			Description: "35L backpack with laptop sleeve, passes as a personal item on most airlines.",
			Price:       89.99,
			Category:    model.CategoryBags,
			ImageURL:    "/images/everyday-backpack.jpg",
			Stock:       40,
		},
		{
			ID:          4,
			Name:        "Weekender Canvas Duffel",
			Description: "Water-resistant canvas duffel with a trolley sleeve and shoe compartment.",
			Price:       64.99,
			Category:    model.CategoryBags,
			ImageURL:    "/images/weekender-duffel.jpg",
			Stock:       32,
		},
		{
			ID:          5,
			Name:        "Packing Cubes Set",
			Description: "Six compression packing cubes in three sizes with mesh tops.",
			Price:       29.99,
			Category:    model.CategoryTravelAccessories,
			ImageURL:    "/images/packing-cubes.jpg",
			Stock:       120,
		},
		{
			ID:          6,
			Name:        "Universal Travel Adapter",
			Description: "All-in-one adapter covering 150+ countries with dual USB-C charging.",
			Price:       19.99,
			Category:    model.CategoryTravelAccessories,
			ImageURL:    "/images/travel-adapter.jpg",
			Stock:       200,
		},
		{
			ID:          7,
			Name:        "Folding Laptop Stand",
			Description: "Aluminium stand that folds flat, raises the screen to eye level anywhere.",
			Price:       44.99,
			Category:    model.CategoryDigitalNomad,
			ImageURL:    "/images/laptop-stand.jpg",
			Stock:       60,
		},
		{
			ID:          8,
			Name:        "Noise-Isolating Travel Headphones",
			Description: "Foldable over-ear headphones with 40-hour battery and in-flight adapter.",
			Price:       129.99,
			Category:    model.CategoryDigitalNomad,
			ImageURL:    "/images/travel-headphones.jpg",
			Stock:       15,
		},
	}

	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
	}

	return products
}
