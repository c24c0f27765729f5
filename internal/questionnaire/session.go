package questionnaire

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Page where the user currently is in the flow
type Page string

const (
	PageComplaint Page = "complaint"
	PageQuestions Page = "questions"
	PageResult    Page = "result"
)

// MaxQuestions caps how many generated questions are kept
const MaxQuestions = 10

var (
	ErrSessionNotFound      = errors.New("questionnaire session not found")
	ErrGeneratorUnavailable = errors.New("generator returned no content")
	ErrEmptyComplaint       = errors.New("complaint is empty")
	ErrWrongPage            = errors.New("operation not allowed on current page")
	ErrAnswerCount          = errors.New("answer count does not match question count")
)

// Session the whole questionnaire state. Transitions take a Session and return
// a new one; nothing is shared between sessions.
type Session struct {
	ID             string    `json:"id"`
	Page           Page      `json:"page"`
	Complaint      string    `json:"complaint"`
	Questions      []string  `json:"questions"`
	Answers        []string  `json:"answers"`
	Recommendation string    `json:"recommendation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSession starts on the complaint page
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:        id,
		Page:      PageComplaint,
		Questions: []string{},
		Answers:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithQuestions records the complaint and the generated questions
func WithQuestions(s Session, complaint string, generated string, now time.Time) (Session, error) {
	if s.Page != PageComplaint {
		return s, ErrWrongPage
	}
	complaint = strings.TrimSpace(complaint)
	if complaint == "" {
		return s, ErrEmptyComplaint
	}
	questions := ParseQuestions(generated)
	if len(questions) == 0 {
		return s, ErrGeneratorUnavailable
	}

	next := s
	next.Complaint = complaint
	next.Questions = questions
	next.Answers = []string{}
	next.Page = PageQuestions
	next.UpdatedAt = now
	return next, nil
}

// WithAnswers records one answer per question
func WithAnswers(s Session, answers []string, now time.Time) (Session, error) {
	if s.Page != PageQuestions {
		return s, ErrWrongPage
	}
	if len(answers) != len(s.Questions) {
		return s, ErrAnswerCount
	}

	next := s
	next.Answers = make([]string, len(answers))
	for i, a := range answers {
		next.Answers[i] = strings.TrimSpace(a)
	}
	next.UpdatedAt = now
	return next, nil
}

// WithRecommendation finishes the session
func WithRecommendation(s Session, recommendation string, now time.Time) (Session, error) {
	if s.Page != PageQuestions || len(s.Answers) != len(s.Questions) {
		return s, ErrWrongPage
	}
	recommendation = strings.TrimSpace(recommendation)
	if recommendation == "" {
		return s, ErrGeneratorUnavailable
	}

	next := s
	next.Recommendation = recommendation
	next.Page = PageResult
	next.UpdatedAt = now
	return next, nil
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+\s*[.)]|[-*•])\s*`)

// ParseQuestions splits generator output into questions, one per line,
// stripping list markers. Blank lines and headings without "?" are dropped
// when at least one line is a question.
func ParseQuestions(generated string) []string {
	var all, withMark []string
	for _, line := range strings.Split(generated, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		all = append(all, line)
		if strings.HasSuffix(line, "?") {
			withMark = append(withMark, line)
		}
	}

	out := all
	if len(withMark) > 0 {
		out = withMark
	}
	if len(out) > MaxQuestions {
		out = out[:MaxQuestions]
	}
	return out
}
