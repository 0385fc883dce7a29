package postgres

type migration struct {
	version int
	sql     string
}

// migrations — схема базы. Новые версии только дописываются в конец.
var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS kv_records (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_kv_records_key_prefix
				ON kv_records (key text_pattern_ops);
		`,
	},
	{
		version: 2,
		sql: `
			CREATE TABLE IF NOT EXISTS admin_sessions (
				id               BIGSERIAL PRIMARY KEY,
				user_id          BIGINT NOT NULL,
				session_token    TEXT NOT NULL UNIQUE,
				authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				expires_at       TIMESTAMPTZ NOT NULL,
				last_activity    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				is_active        BOOLEAN NOT NULL DEFAULT TRUE
			);
			CREATE INDEX IF NOT EXISTS idx_admin_sessions_user
				ON admin_sessions (user_id) WHERE is_active;

			CREATE TABLE IF NOT EXISTS admin_login_attempts (
				id           BIGSERIAL PRIMARY KEY,
				user_id      BIGINT NOT NULL,
				attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				success      BOOLEAN NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user_time
				ON admin_login_attempts (user_id, attempt_time);
		`,
	},
}
