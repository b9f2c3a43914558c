// Package auth issues and verifies the signed tokens embedded in
// appointment confirmation emails. A patient cancels by presenting the
// token, not by logging in.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers expired, malformed and wrongly-signed tokens.
var ErrInvalidToken = errors.New("auth: invalid cancel token")

// CancelClaims bind a cancel token to one appointment.
type CancelClaims struct {
	jwt.RegisteredClaims
	AppointmentID string `json:"appointment_id"`
}

// CancelTokenIssuer signs and verifies HS256 cancel tokens.
type CancelTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customizes a CancelTokenIssuer.
type IssuerOption func(*CancelTokenIssuer)

// WithIssuerNow injects the expiry-check time source, for tests.
func WithIssuerNow(now func() time.Time) IssuerOption {
	return func(i *CancelTokenIssuer) { i.now = now }
}

// NewCancelTokenIssuer creates an issuer. TTL bounds how long after booking
// the emailed link stays usable; zero means 30 days.
func NewCancelTokenIssuer(secret string, ttl time.Duration, opts ...IssuerOption) (*CancelTokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth: cancel token secret required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	issuer := &CancelTokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// Issue creates a token authorizing cancellation of one appointment.
func (i *CancelTokenIssuer) Issue(appointmentID uuid.UUID, now time.Time) (string, error) {
	claims := CancelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "booking-platform",
			Subject:   "appointment-cancel",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		AppointmentID: appointmentID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign cancel token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the appointment the
// token authorizes.
func (i *CancelTokenIssuer) Verify(tokenString string) (uuid.UUID, error) {
	var claims CancelClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	if claims.Subject != "appointment-cancel" {
		return uuid.Nil, ErrInvalidToken
	}
	appointmentID, err := uuid.Parse(claims.AppointmentID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return appointmentID, nil
}
