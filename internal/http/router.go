package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router plain http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterHealthRoute GET /health
func (r *Router) RegisterHealthRoute() {
	r.Handle("/health", methodOnly(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "up"}))
	}))
}

// RegisterSensorRoutes sensor history endpoints
func (r *Router) RegisterSensorRoutes(h *SensorHandler) {
	r.Handle("/api/v1/sensor/history", methodOnly(http.MethodGet, h.GetHistory))
	r.Handle("/api/v1/sensor/history/latest", methodOnly(http.MethodGet, h.GetLatest))
	r.Handle("/api/v1/sensor/history/export", methodOnly(http.MethodGet, h.ExportHistory))
}

// RegisterQuestionnaireRoutes questionnaire session endpoints
func (r *Router) RegisterQuestionnaireRoutes(h *QuestionnaireHandler) {
	const prefix = "/api/v1/questionnaire/sessions"

	r.Handle(prefix, methodOnly(http.MethodPost, h.CreateSession))
	r.Handle("/api/v1/questionnaire/consultations", methodOnly(http.MethodGet, h.ListConsultations))

	// sessions/{id} and sessions/{id}/answers
	r.Handle(prefix+"/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(req.URL.Path, prefix+"/"), "/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			methodOnly(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
				h.GetSession(w, req, parts[0])
			})(w, req)
		case len(parts) == 2 && parts[0] != "" && parts[1] == "answers":
			methodOnly(http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
				h.SubmitAnswers(w, req, parts[0])
			})(w, req)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
