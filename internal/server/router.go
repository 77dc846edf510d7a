package server

import (
	"net/http"
	"strings"
)

// Router is a thin routing layer over [http.ServeMux] with method filtering.
type Router struct {
	mux *http.ServeMux
}

// NewRouter creates a new [Router] instance.
func NewRouter() *Router {
	return &Router{mux: http.NewServeMux()}
}

// Handle registers an [http.Handler] for the specified HTTP method and path.
func (r *Router) Handle(method, path string, handler http.Handler) {
	methodHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.EqualFold(req.Method, method) {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, req)
	})

	r.mux.Handle(path, methodHandler)
}

// Handler registers a custom [Handler] implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
func (r *Router) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.mux.Handle(route, handler)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
