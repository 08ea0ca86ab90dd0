package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Digest implements the Digest scheme of RFC 2617 with MD5, preferring
// qop=auth-int, then auth, then the legacy qop-less form. The nonce count
// stays at 1 and algorithm=MD5-sess is not supported.
type Digest struct{}

var _ Authenticator = Digest{}

func (Digest) Authorize(chal Challenge, ctx Context) (string, error) {
	switch alg := chal.Params["algorithm"]; alg {
	case "", "MD5", "md5":
	default:
		return "", errors.Errorf("unsupported digest algorithm %q", alg)
	}

	nonce := chal.Params["nonce"]
	opaque := chal.Params["opaque"]
	qop := pickQop(chal.Params["qop"])

	target := authlessURI(ctx.URI)

	ha1 := h(ctx.Credentials.Username, chal.Realm, ctx.Credentials.Password)

	var ha2 string
	if qop == "auth-int" {
		sink := md5.New()
		if ctx.Body != nil {
			if err := ctx.Body(sink); err != nil {
				return "", errors.Wrap(err, "digesting request body")
			}
		}
		ha2 = h(ctx.Method, target, hex.EncodeToString(sink.Sum(nil)))
	} else {
		ha2 = h(ctx.Method, target)
	}

	const nc = "00000001"
	cnonce := h(strconv.FormatInt(ctx.Clock.Now().Unix(), 10), chal.Realm)

	var response string
	if qop != "" {
		response = h(ha1, nonce, nc, cnonce, qop, ha2)
	} else {
		response = h(ha1, nonce, ha2)
	}

	b := new(strings.Builder)
	fmt.Fprintf(b, "Digest username=%q", ctx.Credentials.Username)
	fmt.Fprintf(b, ", uri=%q", target)
	fmt.Fprintf(b, ", realm=%q", chal.Realm)
	fmt.Fprintf(b, ", nonce=%q", nonce)
	if qop != "" {
		fmt.Fprintf(b, ", cnonce=%q", cnonce)
		fmt.Fprintf(b, ", qop=%s", qop)
		fmt.Fprintf(b, ", nc=%s", nc)
	}
	fmt.Fprintf(b, ", response=%q", response)
	if opaque != "" {
		fmt.Fprintf(b, ", opaque=%q", opaque)
	}

	return b.String(), nil
}

// pickQop chooses from the server's offered qop list, preferring integrity
// protection.
func pickQop(offered string) string {
	has := map[string]bool{}
	for _, q := range strings.Split(offered, ",") {
		has[strings.TrimSpace(q)] = true
	}
	switch {
	case has["auth-int"]:
		return "auth-int"
	case has["auth"]:
		return "auth"
	}
	return ""
}

// authlessURI renders the digest-uri: the request target in origin form,
// userinfo dropped.
func authlessURI(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// h is hex(md5(join(":", parts))).
func h(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
