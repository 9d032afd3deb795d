package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"oracle", Oracle},
		{"PL/SQL", Oracle},
		{"plsql", Oracle},
		{"mysql", MySQL},
		{"MariaDB", MySQL},
		{"postgres", Postgres},
		{"postgresql", Postgres},
		{"pg", Postgres},
		{"  plpgsql ", Postgres},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("sqlserver")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	for _, d := range All() {
		assert.True(t, d.Valid(), d)
	}
	assert.False(t, Dialect("db2").Valid())
}
