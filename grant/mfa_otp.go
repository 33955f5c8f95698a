package grant

import (
	"context"

	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
)

var _ Handler = (*MfaOtpHandler)(nil)

// MfaOtpHandler serves urn:custom:mfa-otp. The otp / mfa_token pair is
// verified by the host model; the handler only checks presence and maps
// the outcome.
type MfaOtpHandler struct {
	model Model
}

func NewMfaOtpHandler(model Model) *MfaOtpHandler {
	return &MfaOtpHandler{model: model}
}

func (h *MfaOtpHandler) ValidateGrant(req *oauthmodel.TokenRequest) error {
	if req.OTP == "" || req.MfaToken == "" {
		return oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgMissingOtpOrMfaToken)
	}
	switch h.model.(type) {
	case MfaOtpVerifier, MfaOtpGranter, ExtendedGranter:
		return nil
	}
	return oauth2.NewError(oauth2.InvalidGrant, oauthmodel.MsgInvalidGrantType)
}

func (h *MfaOtpHandler) HandleGrant(ctx context.Context, req *oauthmodel.TokenRequest) (*oauthmodel.User, error) {
	var (
		ok   bool
		user *oauthmodel.User
		err  error
	)
	switch m := h.model.(type) {
	case MfaOtpVerifier:
		ok, user, err = m.PerformMfaOtp(ctx, req)
	case MfaOtpGranter:
		ok, user, err = m.UseMfaOtpGrant(ctx, req.GrantType, req)
	case ExtendedGranter:
		ok, user, err = m.ExtendedGrant(ctx, req.GrantType, req)
	default:
		return nil, oauth2.NewError(oauth2.InvalidGrant, oauthmodel.MsgInvalidGrantType)
	}

	if err != nil {
		return nil, asOAuthError(err)
	}
	if !ok || user == nil {
		return nil, oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgOtpRejected)
	}
	return user, nil
}
