package keyreg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func newAPI(t *testing.T) (*Registry, *mux.Router) {
	t.Helper()
	reg := New(nil)
	r := mux.NewRouter()
	NewHTTP(reg).RegisterRoutes(r)
	return reg, r
}

func doJSON(t *testing.T, r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHTTP_CreateAndGet(t *testing.T) {
	t.Parallel()

	_, r := newAPI(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/keys", "alice", `{"nickname":"desk"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Secret == "" {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/keys/"+out.Secret, "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	var e Entry
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Nickname != "desk" || e.Secret != out.Secret {
		t.Fatalf("entry=%+v", e)
	}
}

func TestHTTP_AuthHeaderRequired(t *testing.T) {
	t.Parallel()

	_, r := newAPI(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/keys", "", `{"nickname":"desk"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHTTP_NotFoundVsForbidden(t *testing.T) {
	t.Parallel()

	reg, r := newAPI(t)
	secret, _ := reg.Create("alice", "desk")

	w := doJSON(t, r, http.MethodGet, "/api/v1/keys/nope", "alice", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing key status=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/keys/"+secret, "mallory", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign key status=%d", w.Code)
	}
}

func TestHTTP_EnqueueValidatesCommand(t *testing.T) {
	t.Parallel()

	reg, r := newAPI(t)
	secret, _ := reg.Create("alice", "desk")

	w := doJSON(t, r, http.MethodPost, "/api/v1/keys/"+secret+"/commands", "alice", `{"command":"make-coffee"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown command status=%d", w.Code)
	}
	// невалидная команда не должна попасть в очередь
	cmds, _ := reg.Store().Drain(secret)
	if len(cmds) != 0 {
		t.Fatalf("queue=%v", cmds)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/keys/"+secret+"/commands", "alice", `{"command":"reboot"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("reboot status=%d", w.Code)
	}
	cmds, _ = reg.Store().Drain(secret)
	if len(cmds) != 1 || cmds[0] != CmdReboot {
		t.Fatalf("queue=%v", cmds)
	}
}

func TestHTTP_ActiveBinding(t *testing.T) {
	t.Parallel()

	reg, r := newAPI(t)
	secret, _ := reg.Create("alice", "desk")

	w := doJSON(t, r, http.MethodPost, "/api/v1/active", "alice",
		`{"chat_id":"chat1","secret":"`+secret+`"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set active status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/active/chat1", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get active status=%d", w.Code)
	}
	var out struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Secret != secret {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}

	// чужой пользователь через binding ключ не получает
	w = doJSON(t, r, http.MethodGet, "/api/v1/active/chat1", "mallory", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign active status=%d", w.Code)
	}
}
