package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/socketsvc/ws"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	upgrader  websocket.Upgrader
	ws        *ws.Ws
	tokenAuth *jwtauth.JWTAuth
	port      string
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(s *ws.Ws, tokenAuth *jwtauth.JWTAuth, port string) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ws:        s,
		tokenAuth: tokenAuth,
		port:      port,
	}
	return h
}

// HandleWebSocket authenticates the client from the `jwt` query parameter (or
// the Authorization header), upgrades, and relays its messages to the game service.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token, err := jwtauth.VerifyRequest(h.tokenAuth, r, jwtauth.TokenFromQuery, jwtauth.TokenFromHeader)
	if err != nil || token.Subject() == "" {
		h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized, Error: "valid token required"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	client := &ws.Client{Conn: conn, UserId: token.Subject()}
	h.ws.StoreConnection(socketId, client)

	log.Infof("New WebSocket connection established: %s user %s", socketId, client.UserId)

	// Handle WebSocket connection
	go h.handleConnection(client, socketId)
}

func (h *Handler) handleConnection(client *ws.Client, socketId string) {
	conn := client.Conn
	// Ensure cleanup happens when connection closes
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		conn.Close()
		h.ws.HandleDisconnect(socketId)
	}()

	log.Infof("Started handling connection for socket: %s", socketId)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Check if it's a normal close or unexpected error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			} else {
				log.Infof("WebSocket connection closed normally for socket: %s", socketId)
			}
			break
		}

		// Parse the message
		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			log.Errorf("Failed to unmarshal message from socket %s: %v", socketId, err)
			// Send error response back to client
			h.sendErrorToClient(client, "Invalid message format")
			continue // Don't break, just skip this message
		}

		log.Debugf("Received message from socket %s: type=%s", socketId, message.Type)

		// Handle incoming websocket msg from web client
		h.ws.SocketMessage(socketId, message)
	}
}

// sendErrorToClient sends an error message back to the WebSocket client
func (h *Handler) sendErrorToClient(client *ws.Client, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := client.WriteJSON(errorResponse); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "socket service is running at port " + h.port,
		Code:    200,
		Data:    nil,
	}
	h.CreateResponse(w, rsp)
}
