package grant

import (
	"context"

	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
)

var _ Handler = (*ExtendedHandler)(nil)

// ExtendedHandler routes extension grant types without a dedicated handler
// to the model's ExtendedGrant.
type ExtendedHandler struct {
	model Model
}

func NewExtendedHandler(model Model) *ExtendedHandler {
	return &ExtendedHandler{model: model}
}

func (h *ExtendedHandler) ValidateGrant(req *oauthmodel.TokenRequest) error {
	if _, ok := h.model.(ExtendedGranter); !ok {
		return oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgInvalidGrantTypeParam)
	}
	return nil
}

func (h *ExtendedHandler) HandleGrant(ctx context.Context, req *oauthmodel.TokenRequest) (*oauthmodel.User, error) {
	granter, ok := h.model.(ExtendedGranter)
	if !ok {
		return nil, oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgInvalidGrantTypeParam)
	}

	supported, user, err := granter.ExtendedGrant(ctx, req.GrantType, req)
	if err != nil {
		return nil, asOAuthError(err)
	}
	if !supported {
		return nil, oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgInvalidGrantTypeParam)
	}
	if user == nil || user.ID == "" {
		return nil, oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgInvalidExtendedUser)
	}
	return user, nil
}
