package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Orders         OrderService
	Catalog        CatalogService
	CacheChecks    CacheCheckTrigger
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func NewRouter(deps RouterDeps) chi.Router {
	basketHandler := NewBasketHandler(deps.Catalog, deps.RequestTimeout, deps.Logger)
	ordersHandler := NewOrdersHandler(deps.Orders, deps.RequestTimeout, deps.Logger)
	booksHandler := NewBooksHandler(deps.Catalog, deps.RequestTimeout, deps.Logger)
	adminHandler := NewAdminHandler(deps.CacheChecks, deps.RequestTimeout, deps.Logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(ZapLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, deps.Logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/basket", func(r chi.Router) {
			r.Get("/", basketHandler.GetBasket)
			r.Delete("/", basketHandler.ClearBasket)
			r.Post("/items", basketHandler.AddLine)
			r.Delete("/items/{index}", basketHandler.RemoveLine)
		})

		r.Post("/checkout", ordersHandler.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})

		r.Route("/books/{book_id}", func(r chi.Router) {
			r.Get("/", booksHandler.GetBook)
			r.Post("/reviews", booksHandler.AddReview)
			r.Put("/promotion", booksHandler.SetPromotion)
			r.Delete("/promotion", booksHandler.RemovePromotion)
		})

		r.Post("/admin/cache-check", adminHandler.RunCacheCheck)
	})

	return r
}
