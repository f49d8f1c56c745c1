package tenantdb

import (
	"context"
	"fmt"
)

type Feedback struct {
	Question string
	SQL      string
	Rating   string
	Comment  string
}

const createFeedbackTable = `
CREATE TABLE IF NOT EXISTS query_feedback (
	id BIGSERIAL PRIMARY KEY,
	question TEXT NOT NULL,
	generated_sql TEXT NOT NULL,
	rating TEXT NOT NULL,
	comment TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// InsertFeedback persists a rating for a generated statement in the tenant's
// own database, on the session's connection. The table is created on first
// use so tenant databases need no separate migration step.
func (c *Conn) InsertFeedback(ctx context.Context, feedback Feedback) error {
	if _, err := c.db.ExecContext(ctx, createFeedbackTable); err != nil {
		return fmt.Errorf("ensure feedback table on %s: %w", c.database, err)
	}

	var comment any
	if feedback.Comment != "" {
		comment = feedback.Comment
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO query_feedback (question, generated_sql, rating, comment)
VALUES ($1, $2, $3, $4)`,
		feedback.Question, feedback.SQL, feedback.Rating, comment)
	if err != nil {
		return fmt.Errorf("insert feedback on %s: %w", c.database, err)
	}
	return nil
}
