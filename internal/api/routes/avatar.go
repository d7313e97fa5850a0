package routes

import (
	"github.com/go-chi/chi/v5"

	avatarhandlers "Avatar/internal/api/handlers/avatar"
)

// RegisterAvatarRoutes registers the avatar endpoints on the router.
//
// Routes:
//   - GET /  plain text banner
//   - GET /{signatureHex}/{actor}[?size=tiny]  signed avatar request
//
// The avatar route is a catch-all so the handler sees the escaped path exactly
// as the appview signed it.
func RegisterAvatarRoutes(r chi.Router, handler *avatarhandlers.Handler) {
	r.Get("/", handler.HandleRoot)
	r.Get("/*", handler.HandleAvatar)
}
