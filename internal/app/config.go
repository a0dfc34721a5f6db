package app

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	APIBase string         // meeting API base URL, e.g. https://api.example.com
	HTTP    *http.Client   // optional; defaults to http.DefaultClient
	Log     zerolog.Logger // root logger; components tag themselves
}
