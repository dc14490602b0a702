//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/buzzer/internal/version"
)

// TestDetectActor ensures hostname and username are detected and non-empty.
func TestDetectActor(t *testing.T) {
	t.Parallel()

	a, err := DetectActor()
	require.NoError(t, err)
	require.NotEmpty(t, a.Hostname)
	require.NotEmpty(t, a.Username)
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	actor := &Actor{Hostname: "desk", Username: "o.shokin"}

	require.Equal(t, "o.shokin@desk", actor.String())
	require.Equal(t, "buzzer-ctl/"+version.Short()+" (o.shokin@desk)", UserAgent("buzzer-ctl", actor))
	require.Equal(t, "buzzer-ctl/"+version.Short()+" (<unknown>)", UserAgent("buzzer-ctl", nil))
}
