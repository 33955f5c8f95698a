package grant

import (
	"context"

	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
)

// Handler serves a single grant type.
type Handler interface {
	// ValidateGrant checks the request parameters. It runs before any model call.
	ValidateGrant(req *oauthmodel.TokenRequest) error

	// HandleGrant verifies the grant and returns the resource owner.
	// req.Client is set when it is called.
	HandleGrant(ctx context.Context, req *oauthmodel.TokenRequest) (*oauthmodel.User, error)
}
