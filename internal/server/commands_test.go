package server

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/server/auth"
	"github.com/dmitrijs2005/vaxsync/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{SecretKey: "s3cret", AccessTokenValidityDuration: time.Hour}
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(testConfig())

	for _, name := range []string{"serve", "migrate", "seed", "token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(testConfig())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := runRoot(t, "token", "--guardian", "g1")
	require.NoError(t, err)

	id, err := auth.GetGuardianIDFromToken(strings.TrimSpace(out), []byte("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "g1", id)
}

func TestTokenCommand_IgnoresConfigFlags(t *testing.T) {
	out, err := runRoot(t, "token", "-s", "other", "--guardian", "g2")
	require.NoError(t, err)

	id, err := auth.GetGuardianIDFromToken(strings.TrimSpace(out), []byte("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "g2", id)
}

func TestTokenCommand_RequiresGuardian(t *testing.T) {
	_, err := runRoot(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guardian")
}

func TestSeedCommand_RequiresFile(t *testing.T) {
	_, err := runRoot(t, "seed")
	require.Error(t, err)
}
