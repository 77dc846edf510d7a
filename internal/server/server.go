package server

import (
	"net/http"
)

// Handler defines the interface for HTTP request handlers registered with a
// [Router]. Implementations declare the path patterns they serve.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}
