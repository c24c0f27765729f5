package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"wisefido-medbox/internal/models"

	"go.uber.org/zap"
)

// ConsultationRepository consultations table
//
//	CREATE TABLE consultations (
//	    session_id     UUID PRIMARY KEY,
//	    complaint      TEXT NOT NULL,
//	    questions      JSONB NOT NULL,
//	    answers        JSONB NOT NULL,
//	    recommendation TEXT NOT NULL,
//	    started_at     TIMESTAMPTZ NOT NULL,
//	    completed_at   TIMESTAMPTZ NOT NULL
//	);
type ConsultationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConsultationRepository creates the repository
func NewConsultationRepository(db *sql.DB, logger *zap.Logger) *ConsultationRepository {
	return &ConsultationRepository{
		db:     db,
		logger: logger,
	}
}

// Save upserts a completed consultation
func (r *ConsultationRepository) Save(ctx context.Context, c *models.Consultation) error {
	questions, err := json.Marshal(nonNil(c.Questions))
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}
	answers, err := json.Marshal(nonNil(c.Answers))
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	query := `
		INSERT INTO consultations (
			session_id, complaint, questions, answers, recommendation, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			answers = EXCLUDED.answers,
			recommendation = EXCLUDED.recommendation,
			completed_at = EXCLUDED.completed_at
	`
	_, err = r.db.ExecContext(ctx, query,
		c.SessionID,
		c.Complaint,
		questions,
		answers,
		c.Recommendation,
		c.StartedAt,
		c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save consultation: %w", err)
	}

	r.logger.Debug("Saved consultation", zap.String("session_id", c.SessionID))
	return nil
}

// ListRecent returns the latest consultations, newest first
func (r *ConsultationRepository) ListRecent(ctx context.Context, limit int) ([]models.Consultation, error) {
	query := `
		SELECT session_id, complaint, questions, answers, recommendation, started_at, completed_at
		FROM consultations
		ORDER BY completed_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query consultations: %w", err)
	}
	defer rows.Close()

	var out []models.Consultation
	for rows.Next() {
		var c models.Consultation
		var questions, answers []byte
		if err := rows.Scan(
			&c.SessionID,
			&c.Complaint,
			&questions,
			&answers,
			&c.Recommendation,
			&c.StartedAt,
			&c.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan consultation: %w", err)
		}
		if err := json.Unmarshal(questions, &c.Questions); err != nil {
			return nil, fmt.Errorf("failed to decode questions for %s: %w", c.SessionID, err)
		}
		if err := json.Unmarshal(answers, &c.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers for %s: %w", c.SessionID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate consultations: %w", err)
	}

	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
