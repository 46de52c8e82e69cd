// Applies the database schema. Idempotent, safe to run at every deploy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"docstream/internal/config"
	pg "docstream/internal/infra/db/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id uuid PRIMARY KEY,
		filename text NOT NULL,
		original_name text NOT NULL DEFAULT '',
		file_path text NOT NULL,
		mime_type text NOT NULL DEFAULT '',
		file_size bigint NOT NULL DEFAULT 0,
		content_text text NOT NULL DEFAULT '',
		ai_generated_name text NOT NULL DEFAULT '',
		document_type text NOT NULL DEFAULT '',
		ai_metadata jsonb,
		bill_status text NOT NULL DEFAULT '',
		bill_due_date timestamptz,
		bill_paid_at timestamptz,
		user_id uuid NOT NULL,
		upload_date timestamptz NOT NULL DEFAULT now(),
		processed_date timestamptz,
		deleted_at timestamptz,
		search_vector tsvector
	);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_documents_search ON documents USING gin (search_vector);`,

	`CREATE TABLE IF NOT EXISTS processing_jobs (
		id uuid PRIMARY KEY,
		document_id uuid NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
		job_type text NOT NULL,
		status text NOT NULL DEFAULT 'pending',
		progress int NOT NULL DEFAULT 0,
		error_message text,
		external_task_id text,
		attempts int NOT NULL DEFAULT 0,
		result_data jsonb,
		next_attempt_at timestamptz,
		created_at timestamptz NOT NULL DEFAULT now(),
		started_at timestamptz,
		completed_at timestamptz,
		updated_at timestamptz NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_pending ON processing_jobs (created_at) WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_document ON processing_jobs (document_id);`,

	`CREATE TABLE IF NOT EXISTS tags (
		id uuid PRIMARY KEY,
		name text NOT NULL,
		color text NOT NULL DEFAULT '#6B7280',
		user_id uuid NOT NULL,
		UNIQUE (user_id, name)
	);`,
	`CREATE TABLE IF NOT EXISTS document_tags (
		document_id uuid NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
		tag_id uuid NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
		PRIMARY KEY (document_id, tag_id)
	);`,

	`CREATE TABLE IF NOT EXISTS app_settings (
		key text PRIMARY KEY,
		value text NOT NULL DEFAULT '',
		is_secret boolean NOT NULL DEFAULT false,
		updated_at timestamptz NOT NULL DEFAULT now()
	);`,
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("statement %d: %v", i+1, err)
		}
	}
	fmt.Println("schema up to date")
}
