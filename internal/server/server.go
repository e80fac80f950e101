// Package server exposes the two ingress surfaces: the JSON HTTP endpoints
// and the websocket upgrade. Both converge on relay.Submit.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"veery/internal/cipher"
	"veery/internal/directory"
	"veery/internal/relay"
	"veery/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server holds all dependencies for the veery application.
type Server struct {
	directory directory.Directory
	store     store.MessageStore
	relay     *relay.Relay
	log       logrus.FieldLogger
}

func New(dir directory.Directory, st store.MessageStore, r *relay.Relay, log logrus.FieldLogger) *Server {
	return &Server{
		directory: dir,
		store:     st,
		relay:     r,
		log:       log,
	}
}

// Router wires every endpoint. The messages-to-recipient route registers
// before the messages-from-sender route because mux matches in order and the
// paths overlap.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/update-password", s.handleUpdatePassword).Methods(http.MethodPost)
	r.HandleFunc("/send", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/user", s.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/user/messages/{recipient}", s.handleMessagesToRecipient).Methods(http.MethodGet)
	r.HandleFunc("/user/{username}/{recipient}", s.handleMessagesBetween).Methods(http.MethodGet)
	r.HandleFunc("/user/{username}", s.handleMessagesFromSender).Methods(http.MethodGet)
	r.HandleFunc("/chat", s.handleAllMessages).Methods(http.MethodGet)
	r.HandleFunc("/chat/{username}/{recipient}", s.handleDecodedMessagesBetween).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleConnections)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.directory.Create(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.log.WithField("username", user.Username).Info("user registered")
	s.respondJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.directory.VerifyCredential(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"userId":  user.ID,
	})
}

type updatePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.directory.UpdateCredential(r.Context(), req.Username, req.CurrentPassword, req.NewPassword); err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

type sendRequest struct {
	UserID    string `json:"userId"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// handleSend is the synchronous ingress: same pipeline as the websocket
// path, but the record is returned to the caller and nothing is broadcast.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.relay.Submit(r.Context(), req.UserID, req.Recipient, req.Message, nil)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"message": "Message sent successfully",
		"block":   rec,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.All(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleMessagesToRecipient(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.FindByRecipient(r.Context(), mux.Vars(r)["recipient"])
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleMessagesFromSender(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.FindBySender(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleMessagesBetween(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messages, err := s.store.FindBetween(r.Context(), vars["username"], vars["recipient"])
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleAllMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.FindAll(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"blockchain": messages})
}

type decodedMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleDecodedMessagesBetween(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	records, err := s.store.FindBetween(r.Context(), vars["username"], vars["recipient"])
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	messages := make([]decodedMessage, 0, len(records))
	for _, rec := range records {
		plain, err := cipher.Decode(rec.Payload)
		if err != nil {
			s.respondFailure(w, err)
			return
		}
		messages = append(messages, decodedMessage{
			ID:        rec.ID,
			Sender:    rec.Sender,
			Recipient: rec.Recipient,
			Message:   plain,
			Timestamp: rec.Timestamp,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleConnections upgrades to a websocket and registers the session.
func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := newClient(s.relay, conn, s.log)
	s.relay.Registry().Register(c)
	s.log.Info("client connected")

	go c.writePump()
	go c.readPump()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("writing response failed")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// respondFailure maps the error taxonomy onto HTTP statuses: credential
// mismatches are 401, validation and not-found are 400, anything else is a
// server fault. A duplicate username lands in the fault branch too, matching
// the registration contract.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidCredential):
		s.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, directory.ErrNotFound),
		errors.Is(err, directory.ErrValidation),
		errors.Is(err, relay.ErrUnknownSender),
		errors.Is(err, relay.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		s.respondError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
