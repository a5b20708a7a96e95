package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Data exports return a whole account in one
// response, so the write timeout is generous relative to the rest of the API.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
