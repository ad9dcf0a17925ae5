package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "tracesys-test"
)

func TestInviteRoundtrip(t *testing.T) {
	token, exp, err := IssueInvite("jane@univ.edu", "prac-42", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseInvite(token, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "jane@univ.edu", claims.Email)
	assert.Equal(t, "prac-42", claims.PracticumID)
}

func TestParseInviteRejectsAccessToken(t *testing.T) {
	// An access token is structurally valid JWT but carries no invite
	// purpose; accepting it would let any login act as an invitation.
	pair, err := Issue("jane@univ.edu", RoleStudent, testIssuer, testKey, time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = ParseInvite(pair.AccessToken, testKey, testIssuer)
	assert.ErrorIs(t, err, ErrNotInvite)
}

func TestParseInviteRejectsWrongKey(t *testing.T) {
	token, _, err := IssueInvite("jane@univ.edu", "prac-42", testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = ParseInvite(token, "other-key", testIssuer)
	assert.Error(t, err)
}

func TestParseInviteRejectsWrongIssuer(t *testing.T) {
	token, _, err := IssueInvite("jane@univ.edu", "prac-42", "someone-else", testKey, time.Hour)
	require.NoError(t, err)

	_, err = ParseInvite(token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseInviteRejectsExpired(t *testing.T) {
	token, _, err := IssueInvite("jane@univ.edu", "prac-42", testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	_, err = ParseInvite(token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsInviteToken(t *testing.T) {
	// The reverse of TestParseInviteRejectsAccessToken: an invitation
	// token must not pass as a bearer access token, or an unaccepted
	// invitee could read attendance records.
	token, _, err := IssueInvite("jane@univ.edu", "prac-42", testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	pair, err := Issue("stu-1", "", testIssuer, testKey, time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestAccessTokenRoundtrip(t *testing.T) {
	pair, err := Issue("stu-1", RoleStudent, testIssuer, testKey, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.Subject)
	assert.Equal(t, RoleStudent, claims.Role)

	refresh, err := Parse(pair.RefreshToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", refresh.Subject)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))
}
