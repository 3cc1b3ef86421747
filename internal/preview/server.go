// Package preview serves rendered questions over HTTP so templates can be
// checked in a browser before any HIT is created.
package preview

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psantana5/hitctl/internal/config"
	"github.com/psantana5/hitctl/internal/generator"
	"github.com/psantana5/hitctl/internal/question"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/psantana5/hitctl/pkg/models"
)

// Handler serves task previews
type Handler struct {
	cfg       *config.Config
	questions *question.Store
	registry  *prometheus.Registry
	logger    *logging.Logger

	// CSVPath, when set, replaces every task's generator with the CSV generator
	CSVPath string
}

// NewHandler creates a preview handler. registry may be nil.
func NewHandler(cfg *config.Config, questions *question.Store, registry *prometheus.Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{cfg: cfg, questions: questions, registry: registry, logger: logger}
}

type taskInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Template string `json:"template"`
	Kind     string `json:"kind"`
}

// RegisterRoutes registers the preview routes on r
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	r.HandleFunc("/tasks/{task}/samples/{index:[0-9]+}", h.RenderSample).Methods("GET")
	r.HandleFunc("/tasks/{task}/samples/{index:[0-9]+}/data", h.GetSample).Methods("GET")
	if h.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// Router returns a router with every preview route
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// ListTasks returns the configured tasks and their generator kinds
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := make([]taskInfo, 0, len(h.cfg.Tasks))
	for _, task := range h.cfg.Tasks {
		info := taskInfo{Name: task.Name, Title: task.Title, Template: task.Template}
		if k, err := generator.KindForTask(task); err == nil {
			info.Kind = string(k)
		}
		tasks = append(tasks, info)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// RenderSample renders the question for one sample. ?format=xml returns the
// HTMLQuestion envelope instead of bare HTML.
func (h *Handler) RenderSample(w http.ResponseWriter, r *http.Request) {
	task, sample, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "xml" {
		doc, err := h.questions.Render(task, sample)
		if err != nil {
			h.renderFailed(w, task, err)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		fmt.Fprint(w, doc)
		return
	}

	html, err := h.questions.RenderHTML(task, sample)
	if err != nil {
		h.renderFailed(w, task, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// GetSample returns the raw sample as JSON
func (h *Handler) GetSample(w http.ResponseWriter, r *http.Request) {
	_, sample, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sample)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (models.Task, models.Sample, bool) {
	vars := mux.Vars(r)

	task, err := h.cfg.Task(vars["task"])
	if err != nil {
		http.Error(w, "Task not found", http.StatusNotFound)
		return task, nil, false
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "Invalid sample index", http.StatusBadRequest)
		return task, nil, false
	}

	var gen generator.Generator
	if h.CSVPath != "" {
		gen, err = generator.NewCSV(generator.Source{Path: h.CSVPath})
	} else {
		gen, err = generator.ForTask(task, generator.Source{DatasetFolder: h.cfg.DatasetFolder, BucketURL: h.cfg.BucketURL()})
	}
	if err != nil {
		h.logger.Error("Generator unavailable", logging.Fields{"task": task.Name, "error": err.Error()})
		status := http.StatusInternalServerError
		if errors.Is(err, generator.ErrUnknownTask) || errors.Is(err, generator.ErrNotDirectory) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return task, nil, false
	}

	sample, err := generator.Nth(gen, index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return task, nil, false
	}
	return task, sample, true
}

func (h *Handler) renderFailed(w http.ResponseWriter, task models.Task, err error) {
	h.logger.Error("Render failed", logging.Fields{"task": task.Name, "error": err.Error()})
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
