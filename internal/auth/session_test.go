package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m, err := New("super-secret", time.Hour)
	require.NoError(t, err)
	now := time.Now()
	id := NewSessionID()

	token, err := m.Issue(id, now)
	require.NoError(t, err)

	got, err := m.Parse(token, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParse_Expired(t *testing.T) {
	m, err := New("secret", time.Hour)
	require.NoError(t, err)
	now := time.Now()

	token, err := m.Issue(NewSessionID(), now)
	require.NoError(t, err)

	_, err = m.Parse(token, now.Add(2*time.Hour))
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_WrongSecret(t *testing.T) {
	issuer, err := New("right-secret", time.Hour)
	require.NoError(t, err)
	verifier, err := New("wrong-secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(NewSessionID(), time.Now())
	require.NoError(t, err)

	_, err = verifier.Parse(token, time.Now())
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_Malformed(t *testing.T) {
	m, err := New("k", time.Hour)
	require.NoError(t, err)

	for _, token := range []string{"", "not.a.jwt", "garbage"} {
		_, err := m.Parse(token, time.Now())
		assert.ErrorIs(t, err, ErrInvalidSession, token)
	}
}

func TestParse_RejectsOtherSigningMethod(t *testing.T) {
	m, err := New("k", time.Hour)
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		SessionID:        NewSessionID(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(signed, time.Now())
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestIssue_RejectsNonUUID(t *testing.T) {
	m, err := New("k", time.Hour)
	require.NoError(t, err)

	_, err = m.Issue("alice", time.Now())
	require.Error(t, err)
}

func TestNew_GeneratesSecret(t *testing.T) {
	a, err := New("  ", time.Hour)
	require.NoError(t, err)
	b, err := New("", time.Hour)
	require.NoError(t, err)

	assert.NotEmpty(t, a.secret)
	assert.NotEqual(t, a.secret, b.secret)
	assert.Equal(t, "chainmail_session", a.CookieName())
	assert.Equal(t, time.Hour, a.MaxAge())
}
