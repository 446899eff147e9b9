package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Gateway upgrades authenticated requests to notification websockets.
//
// The token is read from the Authorization header, then the token query
// parameter, then the access_token cookie. Requests without a valid token
// are rejected with 401 before the upgrade.
type Gateway struct {
	hub       *Hub
	validator middleware.TokenValidator
	upgrader  websocket.Upgrader
}

// NewGateway creates a gateway serving hub. allowedOrigins is matched
// exactly against the Origin header; "*" allows any origin.
func NewGateway(hub *Hub, validator middleware.TokenValidator, allowedOrigins []string) *Gateway {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &Gateway{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := origins["*"]; ok {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func handshakeToken(r *http.Request) string {
	if token := utils.BearerToken(r); token != "" {
		return token
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// ServeHTTP handles GET /ws/notifications.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)
	if token == "" {
		log.Warn().Str("ip", utils.ExtractClientIP(r)).Msg("Websocket connection without token")
		utils.RespondWithError(w, r, http.StatusUnauthorized, "missing token")
		return
	}

	claims, err := g.validator.ValidateAccessToken(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Str("ip", utils.ExtractClientIP(r)).Msg("Websocket authentication failed")
		utils.RespondWithError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	userID, err := claims.UserUUID()
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := newClient(g.hub, conn, userID, claims.Role)
	if !g.hub.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("role", string(claims.Role)).
		Str("client_id", c.id).
		Msg("Client connected")

	c.greeting, _ = json.Marshal(mustEnvelope(models.EventConnected, models.Connected{
		Message: "Successfully connected to notifications",
		UserID:  userID.String(),
	}))

	// Mail queued while the user was offline follows the connected event.
	// The write pump sends it before anything from the send buffer, so a
	// backlog larger than the buffer never marks the socket as slow.
	pending, err := g.hub.Drain(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to flush mailbox")
	}
	for _, env := range pending {
		if msg, err := json.Marshal(env); err == nil {
			c.backlog = append(c.backlog, msg)
		}
	}

	go c.writePump()
	go c.readPump()
}
