package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func assignedColumns(set clause.Set) []string {
	cols := make([]string, 0, len(set))
	for _, a := range set {
		cols = append(cols, a.Column.Name)
	}
	return cols
}

func TestRepoConflictUpdatesInPlace(t *testing.T) {
	require.Len(t, repoConflict.Columns, 1)
	assert.Equal(t, "full_name", repoConflict.Columns[0].Name)

	cols := assignedColumns(repoConflict.DoUpdates)
	assert.ElementsMatch(t,
		[]string{"rank", "stars", "description", "language", "avatar_url", "repo_url", "updated_at"},
		cols)

	// Identity and provenance columns stay untouched on conflict.
	assert.NotContains(t, cols, "user")
	assert.NotContains(t, cols, "name")
	assert.NotContains(t, cols, "full_name")
	assert.NotContains(t, cols, "created_at")
}

func TestReleaseConflictUpdatesInPlace(t *testing.T) {
	require.Len(t, releaseConflict.Columns, 1)
	assert.Equal(t, "id", releaseConflict.Columns[0].Name)

	cols := assignedColumns(releaseConflict.DoUpdates)
	assert.ElementsMatch(t, []string{"tag_name", "content"}, cols)
	assert.NotContains(t, cols, "repo_id")
	assert.NotContains(t, cols, "created_at")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
}

func TestTruncateStringKeepsRuneBoundary(t *testing.T) {
	in := strings.Repeat("é", 200)
	out := TruncateString(in, 255)
	assert.True(t, utf8.ValidString(out))
	assert.Len(t, out, 254)
}
