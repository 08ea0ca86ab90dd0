package client

import (
	"github.com/jbourlo/http-cient/auth"
	"github.com/jbourlo/http-cient/cookie"
	"github.com/jbourlo/http-cient/lib/pointer"
	"github.com/jbourlo/http-cient/proxy"
	"github.com/jbourlo/http-cient/transport"
)

// Version identifies this client in the default User-Agent.
const Version = "0.9.0"

// Options collects the reconfigurable parameters of a client. Zero values
// are replaced with defaults in [New]; a limit set to a negative value means
// unbounded.
type Options struct {
	Retry    RetryOptions
	Redirect RedirectOptions

	// UserAgent is sent when the request carries none.
	// Defaults to "http-cient/<version>".
	UserAgent string

	// Proxy selects a forward proxy per target. Defaults to
	// [proxy.FromEnvironment].
	Proxy proxy.Resolver

	// ServerCredentials answers 401 challenges, ProxyCredentials 407 ones.
	// Both default to no credentials.
	ServerCredentials auth.CredentialSource
	ProxyCredentials  auth.CredentialSource

	// Authenticators dispatches challenge scheme tokens. Defaults to
	// [auth.DefaultTable].
	Authenticators auth.Table

	// Jar stores and supplies cookies. Defaults to [cookie.Default], the
	// process-wide jar.
	Jar *cookie.Jar

	// Dialer opens the underlying byte streams. Defaults to a plain
	// [transport.TCPDialer].
	Dialer transport.Dialer

	// TLS upgrades streams for https targets. When nil, https requests fail
	// with [TagMissingTLSProvider]; set [transport.NativeTLS] to enable.
	TLS transport.TLSProvider
}

type RetryOptions struct {
	// MaxAttempts bounds retries of transport failures. nil defaults to 1;
	// a retry is allowed while the failure count stays <= the bound, so the
	// default permits two total attempts. Negative means unbounded.
	MaxAttempts *int

	// Retryable gates retries of transport failures. Defaults to
	// [RetryIdempotent].
	Retryable func(req *Request) bool
}

type RedirectOptions struct {
	// MaxDepth bounds followed redirects. nil defaults to 5; negative means
	// unbounded.
	MaxDepth *int
}

// RetryIdempotent allows retries for requests whose method is idempotent.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.2.2
func RetryIdempotent(req *Request) bool {
	switch req.Method {
	case "GET", "HEAD", "OPTIONS", "TRACE", "PUT", "DELETE":
		return true
	}
	return false
}

func (o Options) withDefaults() Options {
	if o.Retry.MaxAttempts == nil {
		o.Retry.MaxAttempts = pointer.To(1)
	}
	if o.Retry.Retryable == nil {
		o.Retry.Retryable = RetryIdempotent
	}
	if o.Redirect.MaxDepth == nil {
		o.Redirect.MaxDepth = pointer.To(5)
	}
	if o.UserAgent == "" {
		o.UserAgent = "http-cient/" + Version
	}
	if o.Proxy == nil {
		o.Proxy = proxy.FromEnvironment()
	}
	if o.Authenticators == nil {
		o.Authenticators = auth.DefaultTable()
	}
	if o.Jar == nil {
		o.Jar = cookie.Default
	}
	if o.Dialer == nil {
		o.Dialer = &transport.TCPDialer{}
	}
	return o
}

// withinLimit reports whether count stays inside a defaulted limit.
func withinLimit(count int, limit *int) bool {
	return *limit < 0 || count <= *limit
}
