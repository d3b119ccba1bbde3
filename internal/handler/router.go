package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/rental-billing/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса биллинга.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/ping", h.Ping)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.CreateSale)

			r.Route("/{saleID}", func(r chi.Router) {
				r.Get("/", h.GetSale)
				r.Put("/", h.UpdateSale)
				r.Post("/status", h.ChangeSaleStatus)

				r.Post("/documents", h.CreateDocument)
				r.Get("/documents", h.ListSaleDocuments)
			})
		})

		r.Route("/houses/{houseID}", func(r chi.Router) {
			r.Get("/sales", h.ListHouseSales)
			r.Get("/availability", h.CheckAvailability)
		})

		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Post("/issue", h.IssueDocument)
			r.Post("/cancel", h.CancelDocument)
		})

		r.Route("/issuers/{issuerID}", func(r chi.Router) {
			r.Get("/config", h.GetIssuerConfig)
			r.Put("/config", h.SaveIssuerConfig)
			r.Get("/series/{series}", h.GetSequence)
			r.Post("/series/{series}/next", h.NextNumber)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
