package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", 30*time.Minute)

	tokenStr, err := m.Issue("alice@example.com")
	assert.NoError(t, err)

	subject, err := m.Verify(tokenStr)
	assert.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	tokenStr, err := m.Issue("alice@example.com")
	assert.NoError(t, err)

	_, err = m.Verify(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTampered(t *testing.T) {
	m := NewManager("test-secret", 30*time.Minute)

	tokenStr, err := m.Issue("alice@example.com")
	assert.NoError(t, err)

	tampered := tokenStr + "xx"
	_, err = m.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongKey(t *testing.T) {
	issuer := NewManager("test-secret", 30*time.Minute)
	verifier := NewManager("other-secret", 30*time.Minute)

	tokenStr, err := issuer.Issue("alice@example.com")
	assert.NoError(t, err)

	_, err = verifier.Verify(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformed(t *testing.T) {
	m := NewManager("test-secret", 30*time.Minute)

	for _, bad := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := m.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", bad)
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	m := NewManager("test-secret", 30*time.Minute)

	tokenStr, err := m.Issue("")
	assert.NoError(t, err)

	_, err = m.Verify(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
