package snowflake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextID(t *testing.T) {
	require.NoError(t, Init(1, 1))

	a, err := NextID()
	require.NoError(t, err)
	b, err := NextID()
	require.NoError(t, err)
	assert.Greater(t, b, a)

	msgID, err := NextMessageID("dose_logged")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msgID, "dose_logged_"))
}
