package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationsOrdered(t *testing.T) {
	seen := make(map[int]bool)
	prev := 0
	for _, m := range migrations {
		assert.Greater(t, m.version, prev, "версии идут по возрастанию")
		assert.False(t, seen[m.version])
		assert.NotEmpty(t, m.sql)
		seen[m.version] = true
		prev = m.version
	}
}

func TestMigrationsCreateTables(t *testing.T) {
	var all string
	for _, m := range migrations {
		all += m.sql
	}
	for _, table := range []string{"kv_records", "admin_sessions", "admin_login_attempts"} {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
