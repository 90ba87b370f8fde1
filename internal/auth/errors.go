package auth

import "errors"

// Authentication errors.
var (
	// ErrTokenInvalid is returned for a token with a bad signature, an
	// unexpected algorithm or missing claims.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("auth: token has expired")

	// ErrWrongSimulation is returned when a token was issued for another simulation.
	ErrWrongSimulation = errors.New("auth: token issued for another simulation")

	// ErrNoSecret is returned when signing without a configured secret.
	ErrNoSecret = errors.New("auth: no signing secret configured")
)
