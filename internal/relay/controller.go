package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"pulse/internal/keyreg"
	"pulse/internal/logs"
	"pulse/internal/models"

	"github.com/gorilla/mux"
)

/*
Agent-facing API (под него заточен pulse-agent):

POST /api/push/{secret}  — телеметрия, сервер рендерит status и пишет сэмпл
POST /api/msg/{secret}   — сырой текст статуса (внеполосные уведомления)
GET  /api/pull/{secret}  — забрать и очистить очередь команд

Неизвестный секрет — всегда 404, без мутаций.
*/

// KeyStore — контракт реестра, нужный контроллеру приёма.
type KeyStore interface {
	FindKey(secret string) (keyreg.Entry, bool)
	SetStatus(secret, text string) error
	Drain(secret string) ([]keyreg.Command, error)
}

// MetricSink — куда складывать принятые сэмплы.
type MetricSink interface {
	Record(sample models.MetricSample) error
}

// Controller обрабатывает push/pull агентов.
type Controller struct {
	keys     KeyStore
	metrics  MetricSink
	renderer StatusRenderer
	now      func() time.Time
}

func NewController(keys KeyStore, metrics MetricSink, renderer StatusRenderer) *Controller {
	if renderer == nil {
		renderer = NewTextRenderer()
	}
	return &Controller{
		keys:     keys,
		metrics:  metrics,
		renderer: renderer,
		now:      time.Now,
	}
}

// POST /api/push/{secret}
func (c *Controller) handlePush(w http.ResponseWriter, r *http.Request) {
	secret := mux.Vars(r)["secret"]

	var in Telemetry
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad JSON", err.Error(), nil)
		return
	}
	// валидация до любой записи
	if err := in.Validate(); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad telemetry", err.Error(), nil)
		return
	}

	if _, ok := c.keys.FindKey(secret); !ok {
		models.WriteProblem(w, http.StatusNotFound, "Not found", "unknown secret", nil)
		return
	}

	// timestamp ставим здесь, не доверяя часам клиента
	sample := models.MetricSample{
		Secret:    secret,
		Timestamp: c.now().UTC(),
		CPU:       in.CPU,
		RAM:       in.RAM,
		GPU:       in.GPU,
		VRAM:      in.VRAM,
		CPUTemp:   in.CPUTemp,
		UptimeSec: in.Uptime,
	}
	if err := c.metrics.Record(sample); err != nil {
		logs.Logger.Errorf("record sample: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Store failed", "cannot record sample", nil)
		return
	}

	if err := c.keys.SetStatus(secret, c.renderer.Render(in)); err != nil {
		logs.Logger.Errorf("set status: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Store failed", "cannot update status", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// POST /api/msg/{secret}
func (c *Controller) handleMsg(w http.ResponseWriter, r *http.Request) {
	secret := mux.Vars(r)["secret"]

	var in struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad JSON", err.Error(), nil)
		return
	}

	if _, ok := c.keys.FindKey(secret); !ok {
		models.WriteProblem(w, http.StatusNotFound, "Not found", "unknown secret", nil)
		return
	}

	if err := c.keys.SetStatus(secret, in.Text); err != nil {
		logs.Logger.Errorf("set status: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Store failed", "cannot update status", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/pull/{secret}
func (c *Controller) handlePull(w http.ResponseWriter, r *http.Request) {
	secret := mux.Vars(r)["secret"]

	if _, ok := c.keys.FindKey(secret); !ok {
		models.WriteProblem(w, http.StatusNotFound, "Not found", "unknown secret", nil)
		return
	}

	cmds, err := c.keys.Drain(secret)
	if err != nil {
		logs.Logger.Errorf("drain %s: %v", secret, err)
		models.WriteProblem(w, http.StatusInternalServerError, "Store failed", "cannot drain queue", nil)
		return
	}

	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, string(cmd))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"commands": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ─────────────────────────── route registrars ───────────────────────────

func RegisterRoutes(root *mux.Router, keys KeyStore, metrics MetricSink) {
	RegisterRoutesWithRenderer(root, keys, metrics, nil)
}

func RegisterRoutesWithRenderer(root *mux.Router, keys KeyStore, metrics MetricSink, renderer StatusRenderer) {
	ctrl := NewController(keys, metrics, renderer)

	sub := root.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/push/{secret}", ctrl.handlePush).Methods(http.MethodPost)
	sub.HandleFunc("/msg/{secret}", ctrl.handleMsg).Methods(http.MethodPost)
	sub.HandleFunc("/pull/{secret}", ctrl.handlePull).Methods(http.MethodGet)
}
