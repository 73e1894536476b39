// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid session token")
	ErrInvalidHandle = errors.New("handle must be an email address or a phone number")
	ErrMissingScope  = errors.New("session token has no organization scope")
)

// Phone handles are compared on their national number.
const phoneDigits = 10

// NewID creates a random identifier for database records
func NewID() string {
	return uuid.NewString()
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for audit correlation
	return hex.EncodeToString(sum[:8])
}

// NormalizeHandle canonicalizes a contact handle so that format and case
// differences compare equal. Emails are trimmed and lower-cased; phone
// numbers keep only their last ten digits.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	if h == "" {
		return "", ErrInvalidHandle
	}

	if strings.Contains(h, "@") {
		h = strings.ToLower(h)
		at := strings.LastIndex(h, "@")
		if at == 0 || at == len(h)-1 || strings.ContainsAny(h, " \t") {
			return "", ErrInvalidHandle
		}
		return h, nil
	}

	var digits strings.Builder
	for _, r := range h {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || unicode.IsSpace(r):
			// formatting
		default:
			return "", ErrInvalidHandle
		}
	}
	d := digits.String()
	if len(d) < 7 {
		return "", ErrInvalidHandle
	}
	if len(d) > phoneDigits {
		d = d[len(d)-phoneDigits:]
	}
	return d, nil
}

// Claims is the session issued by the membership layer. The organization
// scope is only ever taken from here, never from a request body.
type Claims struct {
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
	Handle         string `json:"handle,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs claims with HS256 and the given lifetime.
func IssueToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry of a session token.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.OrganizationID == "" {
		return nil, ErrMissingScope
	}
	return claims, nil
}
