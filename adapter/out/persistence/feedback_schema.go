// Package persistence provides Postgres adapters implementing outbound ports.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS problems (
	id             BIGINT PRIMARY KEY,
	summary        TEXT        NOT NULL,
	description    TEXT        NOT NULL,
	category       TEXT        NOT NULL,
	severity       TEXT        NOT NULL,
	feedback_count INTEGER     NOT NULL DEFAULT 0 CHECK (feedback_count >= 0),
	status         TEXT        NOT NULL DEFAULT 'pending',
	create_time    TIMESTAMPTZ NOT NULL,
	update_time    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_problems_category_status ON problems (category, status, id);

CREATE TABLE IF NOT EXISTS feedback (
	id          BIGINT PRIMARY KEY,
	content     TEXT        NOT NULL,
	status      TEXT        NOT NULL DEFAULT 'pending',
	problem_id  BIGINT      REFERENCES problems (id),
	sentiment   TEXT        NOT NULL DEFAULT '',
	entities    TEXT[]      NOT NULL DEFAULT '{}',
	create_time TIMESTAMPTZ NOT NULL,
	update_time TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_problem ON feedback (problem_id);

CREATE TABLE IF NOT EXISTS feedback_examples (
	id          BIGINT PRIMARY KEY,
	problem_id  BIGINT      NOT NULL REFERENCES problems (id),
	content     TEXT        NOT NULL,
	create_time TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_examples_problem ON feedback_examples (problem_id, id);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
