package auth

import "encoding/base64"

// Basic implements the Basic scheme of RFC 2617.
type Basic struct{}

var _ Authenticator = Basic{}

func (Basic) Authorize(_ Challenge, ctx Context) (string, error) {
	pair := ctx.Credentials.Username + ":" + ctx.Credentials.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(pair)), nil
}
