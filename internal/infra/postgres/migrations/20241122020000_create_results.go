package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed create_results.sql
var createResultsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createResultsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `
DROP TABLE IF EXISTS question_attempts;
DROP TABLE IF EXISTS session_results;
DROP TABLE IF EXISTS skill_progress`)
		},
	)
}
