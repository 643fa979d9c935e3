package sender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentCandidatesDefaults(t *testing.T) {
	candidates := sentCandidates("", "")
	assert.Equal(t, conventionalSentFolders, candidates)
}

func TestSentCandidatesOrder(t *testing.T) {
	candidates := sentCandidates("INBOX.Saved", "My Sent")
	require.GreaterOrEqual(t, len(candidates), 3)
	// Server-flagged folder first, then the configured override, then the
	// conventional names.
	assert.Equal(t, "INBOX.Saved", candidates[0])
	assert.Equal(t, "My Sent", candidates[1])
	assert.Equal(t, "Sent", candidates[2])
}

func TestSentCandidatesDeduplicates(t *testing.T) {
	candidates := sentCandidates("Sent", "Sent")
	assert.Equal(t, conventionalSentFolders, candidates)

	candidates = sentCandidates("", "Sent Items")
	assert.Equal(t, "Sent Items", candidates[0])
	count := 0
	for _, c := range candidates {
		if c == "Sent Items" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoginAuth(t *testing.T) {
	auth := LoginAuth("user@example.com", "hunter2")

	proto, initial, err := auth.Start(nil)
	require.NoError(t, err)
	assert.Equal(t, "LOGIN", proto)
	assert.Empty(t, initial)

	resp, err := auth.Next([]byte("Username:"), true)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", string(resp))

	resp, err = auth.Next([]byte("Password:"), true)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(resp))

	_, err = auth.Next([]byte("Surprise:"), true)
	assert.Error(t, err)

	resp, err = auth.Next(nil, false)
	require.NoError(t, err)
	assert.Nil(t, resp)
}
