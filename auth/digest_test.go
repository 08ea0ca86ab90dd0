package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5hex(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func digestContext(t *testing.T, rawurl string, clk clock.Clock) Context {
	t.Helper()
	u, err := url.Parse(rawurl)
	require.NoError(t, err)

	return Context{
		Method:      "GET",
		URI:         u,
		Credentials: Credentials{Username: "u", Password: "p"},
		Clock:       clk,
	}
}

func challengeOf(t *testing.T, header string) Challenge {
	t.Helper()
	chal, err := ParseChallenge(header)
	require.NoError(t, err)
	return chal
}

// paramsOf parses a produced Digest header value back into a map.
func paramsOf(t *testing.T, header string) map[string]string {
	t.Helper()
	require.True(t, strings.HasPrefix(header, "Digest "))

	params := map[string]string{}
	for _, part := range splitParams(header[len("Digest "):]) {
		k, v, ok := strings.Cut(part, "=")
		require.True(t, ok, part)
		params[k] = unquote(v)
	}
	return params
}

func TestDigestQopAuth(t *testing.T) {
	clk := clock.NewMock()

	chal := challengeOf(t, `Digest realm="r", nonce="n", qop="auth"`)
	got, err := (Digest{}).Authorize(chal, digestContext(t, "http://a/p", clk))
	require.NoError(t, err)

	params := paramsOf(t, got)

	cnonce := md5hex(strconv.FormatInt(clk.Now().Unix(), 10), "r")
	ha1 := md5hex("u", "r", "p")
	ha2 := md5hex("GET", "/p")
	want := md5hex(ha1, "n", "00000001", cnonce, "auth", ha2)

	assert.Equal(t, "u", params["username"])
	assert.Equal(t, "/p", params["uri"])
	assert.Equal(t, "r", params["realm"])
	assert.Equal(t, "n", params["nonce"])
	assert.Equal(t, cnonce, params["cnonce"])
	assert.Equal(t, "auth", params["qop"])
	assert.Equal(t, "00000001", params["nc"])
	assert.Equal(t, want, params["response"])
	assert.NotContains(t, params, "opaque")
}

func TestDigestQopAuthInt(t *testing.T) {
	clk := clock.NewMock()

	ctx := digestContext(t, "http://a/p", clk)
	ctx.Method = "POST"
	ctx.Body = func(w io.Writer) error {
		_, err := io.WriteString(w, "k=v")
		return err
	}

	chal := challengeOf(t, `Digest realm="r", nonce="n", qop="auth,auth-int"`)
	got, err := (Digest{}).Authorize(chal, ctx)
	require.NoError(t, err)

	params := paramsOf(t, got)
	require.Equal(t, "auth-int", params["qop"])

	cnonce := md5hex(strconv.FormatInt(clk.Now().Unix(), 10), "r")
	ha1 := md5hex("u", "r", "p")
	ha2 := md5hex("POST", "/p", md5hex("k=v"))
	want := md5hex(ha1, "n", "00000001", cnonce, "auth-int", ha2)

	assert.Equal(t, want, params["response"])
}

func TestDigestAuthIntWithoutBody(t *testing.T) {
	clk := clock.NewMock()

	chal := challengeOf(t, `Digest realm="r", nonce="n", qop="auth-int"`)
	got, err := (Digest{}).Authorize(chal, digestContext(t, "http://a/p", clk))
	require.NoError(t, err)

	params := paramsOf(t, got)

	cnonce := md5hex(strconv.FormatInt(clk.Now().Unix(), 10), "r")
	ha1 := md5hex("u", "r", "p")
	ha2 := md5hex("GET", "/p", md5hex(""))
	want := md5hex(ha1, "n", "00000001", cnonce, "auth-int", ha2)

	assert.Equal(t, want, params["response"])
}

func TestDigestWithoutQop(t *testing.T) {
	clk := clock.NewMock()

	chal := challengeOf(t, `Digest realm="r", nonce="n", opaque="op"`)
	got, err := (Digest{}).Authorize(chal, digestContext(t, "http://a/p", clk))
	require.NoError(t, err)

	params := paramsOf(t, got)

	ha1 := md5hex("u", "r", "p")
	ha2 := md5hex("GET", "/p")
	want := md5hex(ha1, "n", ha2)

	assert.Equal(t, want, params["response"])
	assert.Equal(t, "op", params["opaque"])
	assert.NotContains(t, params, "qop")
	assert.NotContains(t, params, "nc")
	assert.NotContains(t, params, "cnonce")
}

func TestDigestStripsUserinfoAndKeepsQuery(t *testing.T) {
	clk := clock.NewMock()

	chal := challengeOf(t, `Digest realm="r", nonce="n", qop="auth"`)
	got, err := (Digest{}).Authorize(chal, digestContext(t, "http://user:pass@a/p?q=1", clk))
	require.NoError(t, err)

	params := paramsOf(t, got)
	assert.Equal(t, "/p?q=1", params["uri"])
}

func TestDigestRejectsMD5Sess(t *testing.T) {
	clk := clock.NewMock()

	chal := challengeOf(t, `Digest realm="r", nonce="n", algorithm=MD5-sess`)
	_, err := (Digest{}).Authorize(chal, digestContext(t, "http://a/p", clk))
	assert.Error(t, err)
}

func TestBasic(t *testing.T) {
	ctx := Context{Credentials: Credentials{Username: "Aladdin", Password: "open sesame"}}
	got, err := (Basic{}).Authorize(Challenge{}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==", got)

	ctx.Credentials.Password = ""
	got, err = (Basic{}).Authorize(Challenge{}, ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Basic %s", "QWxhZGRpbjo="), got)
}
