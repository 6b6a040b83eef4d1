// Package server runs the one-shot localhost HTTP flow that obtains an
// OAuth2 refresh token for an upload account.
//
// The flow starts a temporary server, directs the operator's browser to the
// provider's consent page, and waits for the authorization code callback.
// The handler validates the state parameter, exchanges the code for tokens,
// and delivers the result through a channel. It processes at most one
// callback.
package server
