package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("this-is-a-very-long-secret-key-for-testing", "leadflow")

	tok, err := m.GenerateToken("user_1", "org_1", "org:admin", time.Hour)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID)
	assert.Equal(t, "org_1", claims.OrgID)
	assert.Equal(t, "org:admin", claims.OrgRole)
}

func TestVerify_NoOrganization(t *testing.T) {
	m := NewJWTManager("this-is-a-very-long-secret-key-for-testing", "")

	tok, err := m.GenerateToken("user_1", "", "", time.Hour)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Empty(t, claims.OrgID)
}

func TestVerify_Rejects(t *testing.T) {
	m := NewJWTManager("this-is-a-very-long-secret-key-for-testing", "leadflow")
	other := NewJWTManager("another-secret-key-that-is-long-enough", "leadflow")

	tok, err := other.GenerateToken("user_1", "org_1", "org:member", time.Hour)
	require.NoError(t, err)
	_, err = m.VerifyToken(tok)
	assert.Error(t, err, "wrong secret")

	expired, err := m.GenerateToken("user_1", "org_1", "org:member", -time.Minute)
	require.NoError(t, err)
	_, err = m.VerifyToken(expired)
	assert.Error(t, err, "expired")

	wrongIssuer := NewJWTManager("this-is-a-very-long-secret-key-for-testing", "someone-else")
	tok, err = wrongIssuer.GenerateToken("user_1", "org_1", "org:member", time.Hour)
	require.NoError(t, err)
	_, err = m.VerifyToken(tok)
	assert.Error(t, err, "issuer")

	_, err = m.VerifyToken("garbage")
	assert.Error(t, err)
}
