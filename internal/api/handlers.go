package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/modochat/server/internal/auth"
	"github.com/modochat/server/internal/core"
	"github.com/modochat/server/internal/session"
	"github.com/modochat/server/internal/store"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_id"

type contextKey int

const usernameKey contextKey = iota

// WebhookProcessor receives the raw body of bot webhook deliveries. The bot
// itself is an external collaborator.
type WebhookProcessor func(body []byte)

type Handler struct {
	store    *store.SQLiteStore
	sessions session.Store
	chat     *core.ChatService
	webhook  WebhookProcessor
}

func NewHandler(s *store.SQLiteStore, sessions session.Store, chat *core.ChatService, webhook WebhookProcessor) *Handler {
	return &Handler{store: s, sessions: sessions, chat: chat, webhook: webhook}
}

// SessionContext resolves the session cookie into the request context. A
// missing or stale cookie leaves the request anonymous; endpoints decide what
// that means for them.
func (h *Handler) SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			if username, ok := h.sessions.Resolve(cookie.Value); ok {
				r = r.WithContext(context.WithValue(r.Context(), usernameKey, username))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser returns the resolved username, or "" for anonymous requests.
func currentUser(r *http.Request) string {
	if username, ok := r.Context().Value(usernameKey).(string); ok {
		return username
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SessionInfoHandler reports the resolved username, or null. Never errors.
func (h *Handler) SessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	var usuario any
	if username := currentUser(r); username != "" {
		usuario = username
	}
	writeJSON(w, http.StatusOK, map[string]any{"usuario": usuario})
}

func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)
	if username == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	chats, err := h.store.ListChats(username)
	if err != nil {
		log.Printf("Error listing chats for user %s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

type chatRequest struct {
	Messages []store.Message `json:"messages"`
	Mode     string          `json:"mode"`
	ChatID   int64           `json:"chat_id,omitempty"`
	Title    string          `json:"title,omitempty"`
}

type chatResponse struct {
	Message string `json:"message"`
	ChatID  int64  `json:"chat_id"`
	Title   string `json:"title"`
}

// ChatHandler runs one chat turn: generate a reply (or the fallback), append
// it as a bot message, and persist the chat when a session resolves. Anonymous
// turns still get a reply, just no persistence.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Mode == "" {
		req.Mode = "general"
	}

	reply := h.chat.Reply(r.Context(), req.Messages, req.Mode)
	messages := append(req.Messages, store.Message{Text: reply, Sender: store.SenderBot})

	chatID := req.ChatID
	title := req.Title

	if username := currentUser(r); username != "" {
		if chatID == 0 && title == "" {
			if first := firstUserMessage(req.Messages); first != "" {
				title = h.chat.Title(r.Context(), first)
			}
		}
		if chatID != 0 && title == "" {
			stored, ok, err := h.store.GetChatTitle(chatID, username)
			if err != nil {
				log.Printf("Error reading title for chat %d: %v", chatID, err)
			} else if ok {
				title = stored
			}
		}

		id, err := h.store.UpsertChat(chatID, username, req.Mode, messages, title)
		if err != nil {
			// Persistence is best-effort: the user still gets the reply.
			log.Printf("Error saving chat for user %s: %v", username, err)
		} else {
			chatID = id
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{Message: reply, ChatID: chatID, Title: title})
}

func firstUserMessage(messages []store.Message) string {
	for _, m := range messages {
		if m.Sender == store.SenderUser {
			return m.Text
		}
	}
	return ""
}

type titleRequest struct {
	Messages []store.Message `json:"messages"`
	ChatID   int64           `json:"chat_id"`
}

// TitleHandler derives a title from a chat's first message and stores it when
// the caller is authenticated and names an owned chat.
func (h *Handler) TitleHandler(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	title := ""
	if len(req.Messages) > 0 {
		title = h.chat.Title(r.Context(), req.Messages[0].Text)
	}

	if username := currentUser(r); username != "" && req.ChatID != 0 {
		if err := h.store.UpdateTitle(req.ChatID, username, title); err != nil {
			log.Printf("Error saving title for chat %d: %v", req.ChatID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

// LoginHandler handles the form-encoded login/signup submission. Missing
// fields are client errors (400); failed credentials, duplicate users and
// password-policy violations answer 200 with an error body, which is the
// contract the existing client depends on.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	usuario := r.PostFormValue("usuario")
	password := r.PostFormValue("password")
	action := r.PostFormValue("action")

	if usuario == "" || password == "" || action == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	switch action {
	case "login":
		h.login(w, usuario, password)
	case "signup":
		h.signup(w, usuario, password, r.PostFormValue("confirmar"))
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *Handler) login(w http.ResponseWriter, usuario, password string) {
	hash, err := h.store.GetUserHash(usuario)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.Printf("Error looking up user %s: %v", usuario, err)
		}
		// Same message for unknown user and wrong password: no enumeration.
		writeError(w, http.StatusOK, "unknown user or wrong password")
		return
	}

	match, err := auth.ComparePassword(password, hash)
	if err != nil {
		log.Printf("Error comparing password for user %s: %v", usuario, err)
	}
	if !match {
		writeError(w, http.StatusOK, "unknown user or wrong password")
		return
	}

	token, err := h.sessions.Create(usuario)
	if err != nil {
		log.Printf("Error creating session for user %s: %v", usuario, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	chats, err := h.store.ListChats(usuario)
	if err != nil {
		log.Printf("Error loading history for user %s: %v", usuario, err)
		chats = []store.Chat{}
	}
	if chats == nil {
		chats = []store.Chat{}
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "welcome",
		"usuario": usuario,
		"chats":   chats,
	})
}

func (h *Handler) signup(w http.ResponseWriter, usuario, password, confirmar string) {
	if confirmar == "" {
		writeError(w, http.StatusBadRequest, "password confirmation is required")
		return
	}
	if password != confirmar {
		writeError(w, http.StatusOK, "passwords do not match")
		return
	}
	if err := auth.ValidatePassword(password); err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", usuario, err)
		writeError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	if err := h.store.CreateUser(usuario, hash); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			writeError(w, http.StatusOK, "user already registered")
			return
		}
		log.Printf("Error creating user %s: %v", usuario, err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	// Auto-login after registration.
	token, err := h.sessions.Create(usuario)
	if err != nil {
		log.Printf("Error creating session for user %s: %v", usuario, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "user registered",
		"usuario": usuario,
	})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

// WebhookHandler hands the raw delivery body to the configured processor.
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	h.webhook(body)
	w.WriteHeader(http.StatusOK)
}
