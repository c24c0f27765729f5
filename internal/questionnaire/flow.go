package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuestionGenerator returns "" on failure
type QuestionGenerator interface {
	Generate(ctx context.Context, prompt string) string
}

// RecommendationGenerator returns "" on failure
type RecommendationGenerator interface {
	Generate(ctx context.Context, prompt string) string
}

// ConsultationRecorder persists finished sessions
type ConsultationRecorder interface {
	Save(ctx context.Context, c *models.Consultation) error
}

// Flow drives sessions through the generators and keeps them in the KV store by id
type Flow struct {
	kv              store.KV
	questions       QuestionGenerator
	recommendations RecommendationGenerator
	recorder        ConsultationRecorder
	ttl             time.Duration
	logger          *zap.Logger
	now             func() time.Time
	newID           func() string
}

// NewFlow creates the flow; recorder may be nil
func NewFlow(
	kv store.KV,
	questions QuestionGenerator,
	recommendations RecommendationGenerator,
	recorder ConsultationRecorder,
	ttl time.Duration,
	logger *zap.Logger,
) *Flow {
	return &Flow{
		kv:              kv,
		questions:       questions,
		recommendations: recommendations,
		recorder:        recorder,
		ttl:             ttl,
		logger:          logger,
		now:             time.Now,
		newID:           func() string { return uuid.New().String() },
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("medbox:questionnaire:%s", id)
}

// Begin creates a session and generates its questions
func (f *Flow) Begin(ctx context.Context, complaint string) (Session, error) {
	s := NewSession(f.newID(), f.now())

	if strings.TrimSpace(complaint) == "" {
		return s, ErrEmptyComplaint
	}

	generated := f.questions.Generate(ctx, QuestionPrompt(complaint))
	next, err := WithQuestions(s, complaint, generated, f.now())
	if err != nil {
		return s, err
	}

	if err := f.save(ctx, next); err != nil {
		return next, err
	}

	f.logger.Info("Questionnaire started",
		zap.String("session_id", next.ID),
		zap.Int("questions", len(next.Questions)),
	)
	return next, nil
}

// Load returns a stored session
func (f *Flow) Load(ctx context.Context, id string) (Session, error) {
	raw, err := f.kv.Get(ctx, sessionKey(id))
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}

// Submit records answers and generates the recommendation.
// When the generator fails the answers are kept so the call can be retried.
func (f *Flow) Submit(ctx context.Context, id string, answers []string) (Session, error) {
	s, err := f.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}

	answered, err := WithAnswers(s, answers, f.now())
	if err != nil {
		return s, err
	}

	recommendation := f.recommendations.Generate(ctx, RecommendationPrompt(answered))
	done, err := WithRecommendation(answered, recommendation, f.now())
	if err != nil {
		if saveErr := f.save(ctx, answered); saveErr != nil {
			f.logger.Warn("Failed to keep answers after generator failure", zap.Error(saveErr))
		}
		return answered, err
	}

	if err := f.save(ctx, done); err != nil {
		return done, err
	}

	if f.recorder != nil {
		if err := f.recorder.Save(ctx, toConsultation(done)); err != nil {
			f.logger.Warn("Failed to record consultation",
				zap.String("session_id", done.ID),
				zap.Error(err),
			)
		}
	}

	f.logger.Info("Questionnaire completed", zap.String("session_id", done.ID))
	return done, nil
}

func (f *Flow) save(ctx context.Context, s Session) error {
	jsonData, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := f.kv.Set(ctx, sessionKey(s.ID), string(jsonData), f.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func toConsultation(s Session) *models.Consultation {
	return &models.Consultation{
		SessionID:      s.ID,
		Complaint:      s.Complaint,
		Questions:      s.Questions,
		Answers:        s.Answers,
		Recommendation: s.Recommendation,
		StartedAt:      s.CreatedAt,
		CompletedAt:    s.UpdatedAt,
	}
}
