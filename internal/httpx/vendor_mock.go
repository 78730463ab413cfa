package httpx

import (
	"math/rand"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stockagg/internal/catalog"
)

// MockVendors serves randomized stock feeds for local runs. The two vendors
// overlap on some products with different prices, which is what makes the
// cheapest-single-offer allocation interesting.
type MockVendors struct{}

func (m *MockVendors) Register(r *chi.Mux) {
	r.Get("/vendors/mock/a/stock", m.vendorA)
	r.Get("/vendors/mock/b/stock", m.vendorB)
}

func (m *MockVendors) vendorA(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []catalog.FeedItem{
		{ID: "product-1", Name: "Premium Laptop", Quantity: rand.Intn(100), Price: 1199.99},
		{ID: "product-2", Name: "Wireless Mouse", Quantity: rand.Intn(100), Price: 24.99},
		{ID: "product-3", Name: "USB-C Hub", Quantity: rand.Intn(60), Price: 79.99},
	})
}

func (m *MockVendors) vendorB(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []catalog.FeedItem{
		{ID: "product-1", Name: "Premium Laptop", Quantity: rand.Intn(30) + 5, Price: 1249.99},
		{ID: "product-2", Name: "Wireless Mouse", Quantity: rand.Intn(200) + 50, Price: 19.99},
		{ID: "product-4", Name: "Mechanical Keyboard", Quantity: rand.Intn(75) + 25, Price: 149.99},
		{ID: "product-5", Name: "4K Monitor", Quantity: rand.Intn(25) + 5, Price: 399.99},
	})
}
