package server

import (
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.extract)

		r.Get("/tables", s.listTables)
		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/", s.describeTable)
			r.Post("/rows", s.uploadRows)
			r.Get("/preview", s.preview)
			r.Post("/ask", s.ask)
		})

		r.Get("/history/{kind}", s.history)
	})
}
