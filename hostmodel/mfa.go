package hostmodel

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-mfa-grant/challenges"
	apperrors "github.com/jrsteele09/go-mfa-grant/internal/errors"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// MsgCouldNotValidateOTP is returned for every rejected otp / mfa_token pair.
const MsgCouldNotValidateOTP = "Could not validate OTP."

func otpRejected() *oauth2.Error {
	return oauth2.NewError(oauth2.InvalidToken, MsgCouldNotValidateOTP)
}

// CreateChallenge starts the second factor for a user who passed the first one.
// It returns the mfa_token handed to the client and the OTP to deliver out of band.
func (m *Model) CreateChallenge(ctx context.Context, clientID, userID string) (mfaToken, otp string, err error) {
	if userID == "" {
		return "", "", errors.New("[Model.CreateChallenge] user id is required")
	}
	if _, err := m.clients.Get(clientID); err != nil {
		return "", "", errors.Wrap(err, "[Model.CreateChallenge] clients.Get")
	}

	otp, err = generateOTP()
	if err != nil {
		return "", "", errors.Wrap(err, "[Model.CreateChallenge] generateOTP")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return "", "", errors.Wrap(err, "[Model.CreateChallenge] bcrypt")
	}

	now := m.nowFunc()
	challenge := &challenges.Challenge{
		MfaToken:  uuid.NewString(),
		ClientID:  clientID,
		UserID:    userID,
		OTPHash:   string(hash),
		CreatedAt: now,
		ExpiresAt: now.Add(m.challengeTTL),
	}
	if err := m.challenges.Upsert(ctx, challenge, m.challengeTTL); err != nil {
		return "", "", errors.Wrap(err, "[Model.CreateChallenge] challenges.Upsert")
	}

	log.Debug().Str("client_id", clientID).Str("user_id", userID).Msg("mfa challenge created")
	return challenge.MfaToken, otp, nil
}

// PerformMfaOtp verifies the otp against the challenge named by mfa_token.
// Every verification reserves an attempt before the otp is compared, so at
// most maxAttempts comparisons run per challenge even under concurrent
// requests. A challenge is consumed by the first successful verification and
// dropped once the last allowed attempt fails.
func (m *Model) PerformMfaOtp(ctx context.Context, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error) {
	challenge, err := m.challenges.Get(ctx, req.MfaToken)
	if apperrors.Is(err, apperrors.ErrChallengeNotFound) {
		return false, nil, otpRejected().WithCause(err)
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "[Model.PerformMfaOtp] challenges.Get")
	}

	if req.Client == nil || challenge.ClientID != req.Client.ID {
		log.Warn().Str("client_id", req.ClientID).Msg("mfa challenge presented by another client")
		return false, nil, otpRejected().WithCause(apperrors.ErrInvalidClient)
	}

	if challenge.Expired(m.nowFunc()) {
		if err := m.challenges.Delete(ctx, challenge.MfaToken); err != nil {
			return false, nil, errors.Wrap(err, "[Model.PerformMfaOtp] challenges.Delete")
		}
		return false, nil, otpRejected().WithCause(apperrors.ErrChallengeExpired)
	}

	attempts, err := m.challenges.IncrAttempts(ctx, challenge.MfaToken)
	if apperrors.Is(err, apperrors.ErrChallengeNotFound) {
		return false, nil, otpRejected().WithCause(err)
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "[Model.PerformMfaOtp] challenges.IncrAttempts")
	}
	if attempts > m.maxAttempts {
		log.Warn().Str("client_id", challenge.ClientID).Int("attempts", attempts).Msg("mfa attempt over the limit")
		return false, nil, otpRejected().WithCause(apperrors.ErrTooManyAttempts)
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.OTPHash), []byte(req.OTP)) != nil {
		return false, nil, m.rejectAttempt(ctx, challenge, attempts)
	}

	consumed, err := m.challenges.Consume(ctx, challenge.MfaToken)
	if apperrors.Is(err, apperrors.ErrChallengeNotFound) {
		// Redeemed or dropped by a concurrent request.
		return false, nil, otpRejected().WithCause(err)
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "[Model.PerformMfaOtp] challenges.Consume")
	}
	return true, &oauthmodel.User{
		ID: consumed.UserID,
		Claims: map[string]any{
			"amr": []string{"otp"},
		},
	}, nil
}

func (m *Model) rejectAttempt(ctx context.Context, challenge *challenges.Challenge, attempts int) error {
	logger := log.Warn().Str("client_id", challenge.ClientID).Int("attempts", attempts)

	if attempts >= m.maxAttempts {
		logger.Msg("mfa challenge dropped after too many attempts")
		if err := m.challenges.Delete(ctx, challenge.MfaToken); err != nil {
			return errors.Wrap(err, "[Model.PerformMfaOtp] challenges.Delete")
		}
		return otpRejected().WithCause(apperrors.ErrTooManyAttempts)
	}

	logger.Msg("mfa otp mismatch")
	return otpRejected().WithCause(apperrors.ErrOTPMismatch)
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
