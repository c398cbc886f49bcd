package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQLDropsCommentsAndBlanks(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (id INT);\n\n  -- note\nCREATE INDEX i ON a (id);\n"
	stmts := SplitSQL(StripSQLComments(sql))
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestRepoRootFindsModule(t *testing.T) {
	root, err := RepoRoot()
	assert.NoError(t, err)
	assert.FileExists(t, root+"/go.mod")
}
