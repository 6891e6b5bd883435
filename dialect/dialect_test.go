package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
	}{
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"mysql", "mysql"},
	}

	for _, tt := range tests {
		d, err := ByName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantName, d.Name())
	}

	_, err := ByName("oracle")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	sqlite, _ := ByName("sqlite")
	mysql, _ := ByName("mysql")
	postgres, _ := ByName("postgres")

	assert.Equal(t, "?", sqlite.Placeholder(1))
	assert.Equal(t, "?", sqlite.Placeholder(7))
	assert.Equal(t, "?", mysql.Placeholder(3))
	assert.Equal(t, "$1", postgres.Placeholder(1))
	assert.Equal(t, "$12", postgres.Placeholder(12))
}

func TestQuote(t *testing.T) {
	sqlite, _ := ByName("sqlite")
	mysql, _ := ByName("mysql")
	postgres, _ := ByName("postgres")

	assert.Equal(t, `"users"`, sqlite.Quote("users"))
	assert.Equal(t, "`users`", mysql.Quote("users"))
	assert.Equal(t, `"users"`, postgres.Quote("users"))
}

func TestSupportsReturning(t *testing.T) {
	sqlite, _ := ByName("sqlite")
	mysql, _ := ByName("mysql")
	postgres, _ := ByName("postgres")

	assert.True(t, sqlite.SupportsReturning())
	assert.True(t, postgres.SupportsReturning())
	assert.False(t, mysql.SupportsReturning())
}
