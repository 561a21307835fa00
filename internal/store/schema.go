package store

import (
	"context"
	"fmt"
)

// schemaDDL creates the three tables idempotently. Screens are unique per
// (session, url); elements are unique per (screen, selector, text) so the
// engine's fire-and-forget writes upsert instead of duplicating.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS screens (
    id                BIGSERIAL PRIMARY KEY,
    session_id        TEXT NOT NULL,
    url               TEXT NOT NULL,
    name              TEXT NOT NULL,
    title             TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (session_id, url)
);

CREATE TABLE IF NOT EXISTS elements (
    id                BIGSERIAL PRIMARY KEY,
    screen_id         BIGINT NOT NULL REFERENCES screens(id) ON DELETE CASCADE,
    element_name      TEXT NOT NULL,
    element_type      TEXT NOT NULL,
    element_id        TEXT NOT NULL DEFAULT '',
    element_name_attr TEXT NOT NULL DEFAULT '',
    data_testid       TEXT NOT NULL DEFAULT '',
    aria_label        TEXT NOT NULL DEFAULT '',
    role              TEXT NOT NULL DEFAULT '',
    css_selector      TEXT NOT NULL,
    xpath             TEXT NOT NULL,
    text_content      TEXT NOT NULL DEFAULT '',
    stability_score   INT NOT NULL DEFAULT 0,
    selector_priority INT NOT NULL DEFAULT 5,
    verified          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (screen_id, css_selector, text_content)
);

CREATE INDEX IF NOT EXISTS idx_elements_screen_id ON elements (screen_id);
CREATE INDEX IF NOT EXISTS idx_screens_session_id ON screens (session_id);

CREATE TABLE IF NOT EXISTS crawl_sessions (
    session_id         TEXT PRIMARY KEY,
    status             TEXT NOT NULL,
    screens_discovered INT NOT NULL DEFAULT 0,
    elements_extracted INT NOT NULL DEFAULT 0,
    clicks_performed   INT NOT NULL DEFAULT 0,
    failures           JSONB NOT NULL DEFAULT '{}',
    started_at         TIMESTAMPTZ NOT NULL,
    finished_at        TIMESTAMPTZ NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the DDL. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
