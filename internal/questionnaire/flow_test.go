package questionnaire

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) string {
	args := m.Called(prompt)
	return args.String(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Save(ctx context.Context, c *models.Consultation) error {
	args := m.Called(c)
	return args.Error(0)
}

func newTestFlow(q, r *MockGenerator, rec ConsultationRecorder) (*Flow, *store.MemoryKV) {
	kv := store.NewMemoryKV()
	f := NewFlow(kv, q, r, rec, time.Hour, zap.NewNop())
	f.now = func() time.Time { return now }
	f.newID = func() string { return "session-1" }
	return f, kv
}

func TestFlow_BeginStoresSession(t *testing.T) {
	q := new(MockGenerator)
	q.On("Generate", QuestionPrompt("pusing")).Return("1. Sejak kapan?\n2. Demam?")
	f, _ := newTestFlow(q, new(MockGenerator), nil)

	s, err := f.Begin(context.Background(), "pusing")

	require.NoError(t, err)
	assert.Equal(t, "session-1", s.ID)
	assert.Equal(t, PageQuestions, s.Page)

	loaded, err := f.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, s.Questions, loaded.Questions)
	q.AssertExpectations(t)
}

func TestFlow_BeginGeneratorFailure(t *testing.T) {
	q := new(MockGenerator)
	q.On("Generate", mock.Anything).Return("")
	f, _ := newTestFlow(q, new(MockGenerator), nil)

	_, err := f.Begin(context.Background(), "pusing")

	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	_, err = f.Load(context.Background(), "session-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFlow_BeginEmptyComplaintSkipsGenerator(t *testing.T) {
	q := new(MockGenerator)
	f, _ := newTestFlow(q, new(MockGenerator), nil)

	_, err := f.Begin(context.Background(), "  ")

	assert.ErrorIs(t, err, ErrEmptyComplaint)
	q.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestFlow_SubmitCompletesAndRecords(t *testing.T) {
	q := new(MockGenerator)
	q.On("Generate", mock.Anything).Return("1. Sejak kapan?")
	r := new(MockGenerator)
	r.On("Generate", RecommendationPrompt(Session{
		Complaint: "pusing",
		Questions: []string{"Sejak kapan?"},
		Answers:   []string{"kemarin"},
	})).Return("Minum air dan istirahat.")
	rec := new(MockRecorder)
	rec.On("Save", mock.MatchedBy(func(c *models.Consultation) bool {
		return c.SessionID == "session-1" && c.Recommendation == "Minum air dan istirahat."
	})).Return(nil)

	f, _ := newTestFlow(q, r, rec)
	_, err := f.Begin(context.Background(), "pusing")
	require.NoError(t, err)

	done, err := f.Submit(context.Background(), "session-1", []string{"kemarin"})

	require.NoError(t, err)
	assert.Equal(t, PageResult, done.Page)
	assert.Equal(t, "Minum air dan istirahat.", done.Recommendation)

	loaded, err := f.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, PageResult, loaded.Page)
	r.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestFlow_SubmitRecorderFailureDoesNotFail(t *testing.T) {
	q := new(MockGenerator)
	q.On("Generate", mock.Anything).Return("1. A?")
	r := new(MockGenerator)
	r.On("Generate", mock.Anything).Return("ok")
	rec := new(MockRecorder)
	rec.On("Save", mock.Anything).Return(errors.New("db down"))

	f, _ := newTestFlow(q, r, rec)
	_, err := f.Begin(context.Background(), "batuk")
	require.NoError(t, err)

	done, err := f.Submit(context.Background(), "session-1", []string{"ya"})

	require.NoError(t, err)
	assert.Equal(t, PageResult, done.Page)
}

func TestFlow_SubmitGeneratorFailureKeepsAnswers(t *testing.T) {
	q := new(MockGenerator)
	q.On("Generate", mock.Anything).Return("1. A?")
	r := new(MockGenerator)
	r.On("Generate", mock.Anything).Return("")

	f, _ := newTestFlow(q, r, nil)
	_, err := f.Begin(context.Background(), "batuk")
	require.NoError(t, err)

	_, err = f.Submit(context.Background(), "session-1", []string{"ya"})
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)

	loaded, err := f.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, PageQuestions, loaded.Page)
	assert.Equal(t, []string{"ya"}, loaded.Answers)
}

func TestFlow_SubmitUnknownSession(t *testing.T) {
	f, _ := newTestFlow(new(MockGenerator), new(MockGenerator), nil)

	_, err := f.Submit(context.Background(), "missing", []string{"x"})

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFlow_LoadCorruptSession(t *testing.T) {
	f, kv := newTestFlow(new(MockGenerator), new(MockGenerator), nil)
	require.NoError(t, kv.Set(context.Background(), sessionKey("bad"), "{", 0))

	_, err := f.Load(context.Background(), "bad")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
