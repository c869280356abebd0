package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createAttemptsSQL = `
CREATE TABLE IF NOT EXISTS quiz_attempts (
    id          BIGSERIAL PRIMARY KEY,
    room_code   TEXT        NOT NULL,
    quiz_id     TEXT        NOT NULL,
    host_id     TEXT        NOT NULL,
    questions   INT         NOT NULL,
    ranking     JSONB       NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS quiz_attempts_quiz_id_idx ON quiz_attempts (quiz_id);`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createAttemptsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_attempts`)
			return err
		},
	)
}
