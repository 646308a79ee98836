package identity

import "errors"

var (
	ErrTokenInvalid    = errors.New("identity: invalid token")
	ErrTokenExpired    = errors.New("identity: token expired")
	ErrTokenUsed       = errors.New("identity: token already used")
	ErrSessionNotFound = errors.New("identity: session not found")
	ErrSessionRevoked  = errors.New("identity: session revoked")
)

// User-facing messages. The confirm endpoint passes them through to the
// error page as-is.
const (
	msgInvalidEmail    = "Please enter a valid email address."
	msgEmailNotFound   = "Email not found. Please contact the wedding organizers if you believe this is an error."
	msgSignInTimeout   = "Sign-in is taking longer than expected. Please try again."
	msgSendFailed      = "We couldn't send your sign-in link. Please try again."
	msgMailUnavailable = "Email sign-in is temporarily unavailable. Please try again later."
	msgLinkInvalid     = "Email link is invalid or has expired"
	msgNoInvitation    = "No invitation was found for this email."
	msgSignInAgain     = "Your session has ended. Please sign in again."
)
