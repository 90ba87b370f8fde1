package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nerrad567/meshsim/internal/auth"
	"github.com/nerrad567/meshsim/internal/infrastructure/config"
)

// defaultTokenSubject is used when `meshsim token` is given no subject.
const defaultTokenSubject = "operator"

// runToken prints a control-route token for the configured simulation.
//
//	meshsim token [subject]
func runToken(args []string, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; the API is unauthenticated")
	}

	subject := defaultTokenSubject
	if len(args) > 0 && args[0] != "" {
		subject = args[0]
	}

	token, err := auth.GenerateToken(subject, cfg.Simulation.ID, cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
