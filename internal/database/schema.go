package database

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username      VARCHAR(64)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		profile_image TEXT         NOT NULL DEFAULT '',
		password_hash TEXT         NOT NULL,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS bp_stats (
		bpstat_id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seq        BIGSERIAL   NOT NULL,
		user_id    UUID        NOT NULL REFERENCES users (user_id) ON DELETE CASCADE,
		systolic   INTEGER     NOT NULL,
		diastolic  INTEGER     NOT NULL,
		heart_rate INTEGER     NOT NULL,
		category   VARCHAR(32) NOT NULL CHECK (category IN (
			'Hypertensive Crisis', 'Stage 2 Hypertension', 'Stage 1 Hypertension',
			'Elevated', 'Normal', 'Low', 'Uncategorized')),
		source     VARCHAR(16) NOT NULL DEFAULT 'manual',
		device_id  VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS bp_stats_user_created_idx ON bp_stats (user_id, created_at DESC, seq DESC)`,
}
