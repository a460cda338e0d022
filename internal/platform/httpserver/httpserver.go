package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. WriteTimeout
// must exceed the longest status long-poll.
func New(addr string, handler http.Handler, maxWait time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxWait + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
