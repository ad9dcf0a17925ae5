package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const invitePurpose = "invite"

// ErrNotInvite means the token is valid but not an invitation token.
var ErrNotInvite = errors.New("not an invitation token")

// InviteClaims binds an invitation to an email and a practicum. The
// purpose field keeps invitation tokens from being replayed as access
// tokens and vice versa.
type InviteClaims struct {
	Email       string `json:"email"`
	PracticumID string `json:"practicumId"`
	Purpose     string `json:"purpose"`
	jwt.RegisteredClaims
}

// IssueInvite creates a single-purpose invitation token.
func IssueInvite(email, practicumID, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := InviteClaims{
		Email:       email,
		PracticumID: practicumID,
		Purpose:     invitePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ParseInvite validates an invitation token.
func ParseInvite(tokenStr, key, issuer string) (InviteClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &InviteClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return InviteClaims{}, err
	}
	claims, ok := parsed.Claims.(*InviteClaims)
	if !ok || !parsed.Valid {
		return InviteClaims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return InviteClaims{}, errors.New("issuer mismatch")
	}
	if claims.Purpose != invitePurpose {
		return InviteClaims{}, ErrNotInvite
	}
	return *claims, nil
}
