package oauthmodel

// Error descriptions reported by the token endpoint.
const (
	MsgMethodNotAllowed      = "Method must be POST with application/x-www-form-urlencoded encoding"
	MsgMalformedBody         = "Invalid form data"
	MsgMissingClientID       = "Invalid or missing client_id parameter"
	MsgInvalidClient         = "Client credentials are invalid"
	MsgUnauthorisedGrant     = "The grant type is unauthorised for this client_id"
	MsgInvalidGrantTypeParam = "Invalid grant_type parameter or parameter missing"
	MsgInvalidGrantType      = "Invalid grant_type"
	MsgInvalidExtendedUser   = "Invalid request."
	MsgMissingOtpOrMfaToken  = "You must provide otp and mfa token"
	MsgOtpRejected           = "Invalid otp or mfa token"
	MsgInvalidScope          = "Invalid scope"
	MsgServerError           = "Server error"
)
