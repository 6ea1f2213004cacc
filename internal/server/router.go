package server

import (
	"net/http"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Routes are registered on an [http.ServeMux] with method patterns, so a request with the wrong method gets a
// 405 from the mux itself.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use adds [Middleware] to the stack, applied in the order it's added.
//
// Only routes registered after the call are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path. An empty method matches any method.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	pattern := path
	if method != "" {
		pattern = method + " " + path
	}
	r.mux.Handle(pattern, r.Apply(handler))
}

// HandleFunc is [BasicRouter.Handle] for a plain function.
func (r *BasicRouter) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.Handle(method, path, fn)
}

// Handler registers every pattern returned by [Handler.Routes] to handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware; the first added is outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}
