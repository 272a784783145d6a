package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chatter/internal/storage"
)

const minPasswordLength = 6

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type usersResponse struct {
	Users []userDTO `json:"users"`
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"` // base64 data url, optional
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

type passwordChangeRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (s *Server) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.authLimiter.Allow(s.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, errors.New("username and password are required"))
		return
	}
	if len(password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, errors.New("password must be at least 6 characters long"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	id, err := s.store.CreateUser(r.Context(), username, hash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(w, http.StatusConflict, errors.New("username already taken"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.IncSignup()
	writeJSON(w, http.StatusCreated, userDTO{ID: id, Username: username})
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.authLimiter.Allow(s.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, errors.New("username and password are required"))
		return
	}
	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.IncLogin()
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: expiresAt,
	})
}

// HandleLogout only checks the token; sessions are stateless, so logging out
// is the client discarding it. The endpoint exists so clients have a single
// place to confirm the token is gone server-side if that ever changes.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, err := s.authenticateRequest(r); err != nil {
		writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUsers returns the roster: every user except the caller, with their
// live presence flag. An optional q parameter narrows it to a username
// substring search.
func (s *Server) HandleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	authCtx, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	var users []storage.User
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		users, err = s.store.SearchUsers(r.Context(), authCtx.UserID, q)
	} else {
		users, err = s.store.ListUsers(r.Context(), authCtx.UserID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := usersResponse{Users: make([]userDTO, 0, len(users))}
	for _, user := range users {
		resp.Users = append(resp.Users, userDTO{
			ID:       user.ID,
			Username: user.Username,
			Online:   s.registry.Online(user.ID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMessages serves /messages/{peer}: GET returns the conversation with
// that peer, POST persists a new message to them. Persistence here is what
// makes the later websocket send event safe to treat as fire-and-forget.
func (s *Server) HandleMessages(w http.ResponseWriter, r *http.Request) {
	authCtx, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	peerID, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/messages/"), 10, 64)
	if err != nil || peerID <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("peer user id required"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleListMessages(w, r, authCtx.UserID, peerID)
	case http.MethodPost:
		s.handleSendMessage(w, r, authCtx.UserID, peerID)
	default:
		methodNotAllowed(w, http.MethodGet+", "+http.MethodPost)
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, userID, peerID int64) {
	stored, err := s.store.ListConversation(r.Context(), userID, peerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := messagesResponse{Messages: make([]Message, 0, len(stored))}
	for _, m := range stored {
		resp.Messages = append(resp.Messages, messageDTO(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, userID, peerID int64) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image == "" {
		writeError(w, http.StatusBadRequest, errors.New("message text or image is required"))
		return
	}
	peer, err := s.store.GetUserByID(r.Context(), peerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if peer == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	var imagePath string
	if req.Image != "" {
		imagePath, err = s.images.SaveDataURL(req.Image)
		if err != nil {
			if errors.Is(err, ErrImageFormat) || errors.Is(err, ErrImageTooLarge) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	stored, err := s.store.CreateMessage(r.Context(), userID, peerID, text, imagePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.IncMessageStored()
	writeJSON(w, http.StatusCreated, messageDTO(*stored))
}

func (s *Server) HandlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	authCtx, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	var req passwordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.New) == "" || strings.TrimSpace(req.Current) == "" {
		writeError(w, http.StatusBadRequest, errors.New("both current and new passwords required"))
		return
	}
	if len(strings.TrimSpace(req.New)) < minPasswordLength {
		writeError(w, http.StatusBadRequest, errors.New("password must be at least 6 characters long"))
		return
	}
	user, err := s.store.GetUserByID(r.Context(), authCtx.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Current)) != nil {
		writeError(w, http.StatusUnauthorized, errors.New("current password incorrect"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(req.New)), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.UpdatePassword(r.Context(), authCtx.UserID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImages delegates to the image store.
func (s *Server) HandleImages(w http.ResponseWriter, r *http.Request) {
	s.images.ServeHTTP(w, r)
}

func messageDTO(m storage.Message) Message {
	return Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Image:       m.ImagePath,
		CreatedAt:   m.CreatedAt,
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, errUnauthorized) {
		status = http.StatusUnauthorized
	}
	http.Error(w, http.StatusText(status), status)
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
