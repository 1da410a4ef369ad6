package handlers

import "github.com/go-chi/chi/v5"

// Mount registers the page and fragment routes.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/", h.Home)
	r.Get("/search", h.Search)
	r.Get("/search/more", h.SearchMore)
	r.Get("/guided-reading", h.Guided)
	r.Get("/{segment}", h.KindIndex)
	r.Get("/{segment}/category/{id}", h.Category)
	r.Get("/{segment}/category/{id}/more", h.CategoryMore)
	r.Get("/{segment}/{id}", h.Detail)
	r.NotFound(h.NotFound)
}
