package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/questionnaire"

	"go.uber.org/zap"
)

// QuestionnaireFlow what the questionnaire endpoints need
type QuestionnaireFlow interface {
	Begin(ctx context.Context, complaint string) (questionnaire.Session, error)
	Load(ctx context.Context, id string) (questionnaire.Session, error)
	Submit(ctx context.Context, id string, answers []string) (questionnaire.Session, error)
}

// ConsultationLister read side of the consultation log
type ConsultationLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.Consultation, error)
}

const (
	defaultConsultationLimit = 20
	maxConsultationLimit     = 100
)

type QuestionnaireHandler struct {
	flow          QuestionnaireFlow
	consultations ConsultationLister
	logger        *zap.Logger
}

// NewQuestionnaireHandler creates the handler; consultations is nil when the log is disabled
func NewQuestionnaireHandler(flow QuestionnaireFlow, consultations ConsultationLister, logger *zap.Logger) *QuestionnaireHandler {
	return &QuestionnaireHandler{flow: flow, consultations: consultations, logger: logger}
}

type createSessionRequest struct {
	Complaint string `json:"complaint"`
}

type submitAnswersRequest struct {
	Answers []string `json:"answers"`
}

// CreateSession POST /api/v1/questionnaire/sessions
func (h *QuestionnaireHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	s, err := h.flow.Begin(r.Context(), req.Complaint)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(s))
}

// GetSession GET /api/v1/questionnaire/sessions/{id}
func (h *QuestionnaireHandler) GetSession(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.flow.Load(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// SubmitAnswers POST /api/v1/questionnaire/sessions/{id}/answers
func (h *QuestionnaireHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request, id string) {
	var req submitAnswersRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	s, err := h.flow.Submit(r.Context(), id, req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// ListConsultations GET /api/v1/questionnaire/consultations?limit=
func (h *QuestionnaireHandler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	if h.consultations == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("consultation log disabled"))
		return
	}

	limit, err := queryInt(r.URL.Query(), "limit", defaultConsultationLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	if limit <= 0 || limit > maxConsultationLimit {
		writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("limit must be between 1 and %d", maxConsultationLimit)))
		return
	}

	list, err := h.consultations.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list consultations", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list consultations"))
		return
	}
	if list == nil {
		list = []models.Consultation{}
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

func (h *QuestionnaireHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, questionnaire.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, questionnaire.ErrEmptyComplaint),
		errors.Is(err, questionnaire.ErrAnswerCount),
		errors.Is(err, questionnaire.ErrWrongPage):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, questionnaire.ErrGeneratorUnavailable):
		writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
	default:
		h.logger.Error("Questionnaire request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
