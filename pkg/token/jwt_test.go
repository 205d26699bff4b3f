package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_RoundTrip(t *testing.T) {
	m := NewSessionManager("secret", time.Hour)

	sid, tok, err := m.NewSession()
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	got, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, sid, got)
}

func TestSessionManager_RejectsOtherSecret(t *testing.T) {
	tok, err := NewSessionManager("a", time.Hour).GenerateToken("s1")
	require.NoError(t, err)

	_, err = NewSessionManager("b", time.Hour).VerifyToken(tok)
	assert.Error(t, err)
}

func TestSessionManager_Expired(t *testing.T) {
	m := NewSessionManager("secret", time.Minute)
	base := time.Now()
	m.now = func() time.Time { return base }
	tok, err := m.GenerateToken("s1")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}

func TestSessionManager_RandomSecretWhenEmpty(t *testing.T) {
	m1 := NewSessionManager("", 0)
	m2 := NewSessionManager("", 0)
	assert.Equal(t, 24*time.Hour, m1.TTL())

	tok, err := m1.GenerateToken("s1")
	require.NoError(t, err)
	_, err = m2.VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyToken_Garbage(t *testing.T) {
	_, err := NewSessionManager("secret", time.Hour).VerifyToken("not-a-token")
	assert.Error(t, err)
}
