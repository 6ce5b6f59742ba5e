// Package otp provides the one-time-passcode collaborator. This is a mock:
// nothing is delivered, and any six-digit code verifies.
package otp

import (
	"context"
	"regexp"
	"time"

	"github.com/lumachat/lumachat/pkg/log"
)

// Config holds the simulated round-trip delays.
type Config struct {
	SendDelay   time.Duration `mapstructure:"send_delay"`
	VerifyDelay time.Duration `mapstructure:"verify_delay"`
}

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// Service implements the OTP send/verify contract.
type Service struct {
	cfg Config
}

// NewService creates the OTP service.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Send simulates delivering a passcode to the phone. It always succeeds.
func (s *Service) Send(ctx context.Context, phone, countryCode string) (bool, error) {
	if err := s.wait(ctx, s.cfg.SendDelay); err != nil {
		return false, err
	}
	ctxLogger := log.Ctx(ctx)
	ctxLogger.Info().Str(log.FieldPhone, countryCode+phone).Msg("otp sent")
	return true, nil
}

// Verify simulates checking a passcode. Any code of exactly six digits is
// accepted.
func (s *Service) Verify(ctx context.Context, phone, countryCode, code string) (bool, error) {
	if err := s.wait(ctx, s.cfg.VerifyDelay); err != nil {
		return false, err
	}
	return sixDigits.MatchString(code), nil
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
