package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...(truncated)", Truncate("abcdef", 2))
}

func TestExecRunMissingBinary(t *testing.T) {
	_, _, err := Exec{}.Run(context.Background(), "scansmart-definitely-not-a-binary")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no such file"))
}
