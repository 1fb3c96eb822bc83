package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// WelcomeText is served on GET /.
const WelcomeText = "Welcome to the timekeeper server!"

type privateData struct {
	Message string  `json:"message"`
	User    *string `json:"user"`
}

// RegisterSystem adds healthCheck (public) and privateData (protected).
func RegisterSystem(p *Procedures) {
	p.PublicQuery("healthCheck", func(context.Context, json.RawMessage) (any, error) {
		return "OK", nil
	})
	p.Query("privateData", bind(func(ctx context.Context, _ struct{}) (privateData, error) {
		out := privateData{Message: "This is private"}
		if id := sessionUserID(ctx); id != "" {
			out.User = &id
		}
		return out, nil
	}))
}

// HandleWelcome answers GET / with a plain-text greeting.
func HandleWelcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(WelcomeText)) //nolint:errcheck
}
