package keyreg

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pulse/internal/models"

	"github.com/gorilla/mux"
)

// HTTP — операторский API для чат-фронта. Сам фронт снаружи; сюда он
// приходит с заголовком X-User-Id (идентификатор пользователя чата).
type HTTP struct{ reg *Registry }

func NewHTTP(reg *Registry) *HTTP { return &HTTP{reg: reg} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// keys
	api.HandleFunc("/keys", h.createKey).Methods(http.MethodPost)
	api.HandleFunc("/keys", h.listKeys).Methods(http.MethodGet)
	api.HandleFunc("/keys/{secret}", h.getKey).Methods(http.MethodGet)
	api.HandleFunc("/keys/{secret}/link", h.linkKey).Methods(http.MethodPost)
	api.HandleFunc("/keys/{secret}/rename", h.renameKey).Methods(http.MethodPost)
	api.HandleFunc("/keys/{secret}/commands", h.enqueueCommand).Methods(http.MethodPost)

	// active-key binding per chat context
	api.HandleFunc("/active", h.setActive).Methods(http.MethodPost)
	api.HandleFunc("/active/{chat}", h.getActive).Methods(http.MethodGet)
}

func (h *HTTP) createKey(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		Nickname string `json:"nickname"`
		ChatID   string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", 400)
		return
	}
	secret, err := h.reg.Create(user, in.Nickname)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	// новый ключ сразу делаем активным для чата (как делал бот)
	if in.ChatID != "" {
		_ = h.reg.SetActive(in.ChatID, secret, user)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"secret": secret})
}

func (h *HTTP) listKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	keys, err := h.reg.List(user)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if keys == nil {
		keys = []Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(keys)
}

func (h *HTTP) getKey(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	e, err := h.reg.Get(mux.Vars(r)["secret"], user)
	if err != nil {
		writeRegError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(e)
}

func (h *HTTP) linkKey(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	secret := mux.Vars(r)["secret"]
	var in struct {
		ChatID string `json:"chat_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	if err := h.reg.Link(secret, user); err != nil {
		writeRegError(w, err)
		return
	}
	if in.ChatID != "" {
		_ = h.reg.SetActive(in.ChatID, secret, user)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) renameKey(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		http.Error(w, "name required", 400)
		return
	}
	if err := h.reg.Rename(mux.Vars(r)["secret"], user, in.Name); err != nil {
		writeRegError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) enqueueCommand(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", 400)
		return
	}
	cmd, err := ParseCommand(in.Command)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad command", err.Error(), nil)
		return
	}
	if err := h.reg.Enqueue(mux.Vars(r)["secret"], user, cmd); err != nil {
		writeRegError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *HTTP) setActive(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		ChatID string `json:"chat_id"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ChatID == "" || in.Secret == "" {
		http.Error(w, "invalid body (need {chat_id, secret})", 400)
		return
	}
	if err := h.reg.SetActive(in.ChatID, in.Secret, user); err != nil {
		writeRegError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) getActive(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	secret, err := h.reg.Resolve(mux.Vars(r)["chat"], user, "")
	if err != nil {
		writeRegError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"secret": secret})
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if user == "" {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "X-User-Id header required", nil)
		return "", false
	}
	return user, true
}

// writeRegError — единое отображение доменных ошибок: фронту важно
// отличать «ключ не найден» от «нет доступа».
func writeRegError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not found", "key not found", nil)
	case errors.Is(err, ErrNoAccess):
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "no access to key", nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal", err.Error(), nil)
	}
}
