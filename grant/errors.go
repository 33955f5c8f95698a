package grant

import (
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
	"github.com/pkg/errors"
)

// asOAuthError keeps OAuth errors raised by the host model as they are and
// turns anything else into a server_error wrapping the cause.
func asOAuthError(err error) *oauth2.Error {
	var oauthErr *oauth2.Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return oauth2.NewError(oauth2.ServerError, oauthmodel.MsgServerError).WithCause(err)
}
