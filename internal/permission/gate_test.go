package permission

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyGate(t *testing.T) {
	ctx := context.Background()
	g := NewPolicyGate(PolicyGranted, PolicyDenied, nil, nil)

	d, err := g.RequestAccess(ctx, Camera)
	require.NoError(t, err)
	assert.Equal(t, Granted, d)

	d, err = g.RequestAccess(ctx, Gallery)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)
}

func TestPolicyGatePromptFallback(t *testing.T) {
	ctx := context.Background()
	g := NewPolicyGate(PolicyPrompt, PolicyPrompt, Static(Granted), nil)
	d, err := g.RequestAccess(ctx, Camera)
	require.NoError(t, err)
	assert.Equal(t, Granted, d)

	noPrompt := NewPolicyGate(PolicyPrompt, PolicyPrompt, nil, nil)
	d, err = noPrompt.RequestAccess(ctx, Gallery)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)
}

func TestPolicyGateUnknownPolicy(t *testing.T) {
	g := NewPolicyGate("sometimes", PolicyGranted, nil, nil)
	d, err := g.RequestAccess(context.Background(), Camera)
	require.Error(t, err)
	assert.Equal(t, Denied, d)
}

func TestPromptGateRemembersGrant(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	g := NewPromptGate(strings.NewReader("y\n"), &out)

	d, err := g.RequestAccess(ctx, Camera)
	require.NoError(t, err)
	assert.Equal(t, Granted, d)
	assert.Contains(t, out.String(), "access the camera")

	// no more input: the remembered grant must answer without prompting
	out.Reset()
	d, err = g.RequestAccess(ctx, Camera)
	require.NoError(t, err)
	assert.Equal(t, Granted, d)
	assert.Empty(t, out.String())
}

func TestPromptGateDenialNotRemembered(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	g := NewPromptGate(strings.NewReader("n\nyes\n"), &out)

	d, err := g.RequestAccess(ctx, Gallery)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)

	d, err = g.RequestAccess(ctx, Gallery)
	require.NoError(t, err)
	assert.Equal(t, Granted, d)
}

func TestPromptGateEOFDenies(t *testing.T) {
	g := NewPromptGate(strings.NewReader(""), &bytes.Buffer{})
	d, err := g.RequestAccess(context.Background(), Camera)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)
}
