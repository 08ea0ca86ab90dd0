package cookie

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type attribute struct {
	name     string // lower-cased
	value    string
	hasValue bool
}

// parseSetCookie parses one Set-Cookie (v2=false) or Set-Cookie2 (v2=true)
// header value received from u and validates it against the request URI.
func parseSetCookie(u *url.URL, raw string, v2 bool) (Cookie, error) {
	name, value, attrs, err := splitCookie(raw)
	if err != nil {
		return Cookie{}, err
	}

	c := Cookie{
		Name:   name,
		Value:  value,
		Path:   defaultPath(u),
		Domain: u.Hostname(),
	}

	domainGiven := false
	versionGiven := false

	for _, attr := range attrs {
		switch attr.name {
		case "path":
			c.Path = attr.value
		case "domain":
			c.Domain = attr.value
			domainGiven = true
		case "secure":
			c.Secure = true
		case "version":
			v, err := strconv.Atoi(strings.Trim(attr.value, `"`))
			if err != nil {
				return Cookie{}, errors.Wrap(err, "parsing version")
			}
			c.Version = v
			versionGiven = true
		case "max-age":
			v, err := strconv.Atoi(strings.Trim(attr.value, `"`))
			if err != nil {
				return Cookie{}, errors.Wrap(err, "parsing max-age")
			}
			c.MaxAge = &v
		case "port":
			if !v2 {
				continue
			}
			ports, err := parsePorts(u, attr)
			if err != nil {
				return Cookie{}, err
			}
			c.Ports = ports
		}
	}

	if v2 {
		if !versionGiven {
			return Cookie{}, errors.New("Set-Cookie2 requires a version attribute")
		}
		if domainGiven {
			if err := assertV2Domain(c.Domain); err != nil {
				return Cookie{}, err
			}
		}
	}

	if !pathMatch(c.Path, u.Path) {
		return Cookie{}, errors.Errorf("cookie path %q does not match request path", c.Path)
	}

	host := u.Hostname()
	if domainGiven {
		if !domainMatch(host, c.Domain) {
			return Cookie{}, errors.Errorf("cookie domain %q does not match host %q", c.Domain, host)
		}
		if prefixCoveredByDots(strings.ToLower(host), strings.ToLower(c.Domain)) {
			return Cookie{}, errors.Errorf("host prefix before domain %q contains a dot", c.Domain)
		}
	}

	return c, nil
}

// splitCookie separates the name=value pair from the attribute list.
func splitCookie(raw string) (name, value string, attrs []attribute, _ error) {
	parts := strings.Split(raw, ";")

	name, value, ok := cutPair(parts[0])
	if !ok || name == "" || strings.HasPrefix(name, "$") {
		return "", "", nil, errors.Errorf("malformed cookie pair: %q", parts[0])
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if k, v, ok := cutPair(part); ok {
			attrs = append(attrs, attribute{name: strings.ToLower(k), value: v, hasValue: true})
		} else {
			attrs = append(attrs, attribute{name: strings.ToLower(part)})
		}
	}

	return name, value, attrs, nil
}

func cutPair(s string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(s, "=")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	value = strings.Trim(strings.TrimSpace(value), `"`)
	return name, value, true
}

// defaultPath is the request URI's path, per the jar's defaulting rule.
func defaultPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// assertV2Domain enforces the RFC 2965 domain shape: ".local", or a value
// with an embedded dot.
func assertV2Domain(domain string) error {
	if strings.EqualFold(domain, ".local") {
		return nil
	}
	if idx := strings.Index(strings.Trim(domain, "."), "."); idx > 0 {
		return nil
	}
	return errors.Errorf("Set-Cookie2 domain %q lacks an embedded dot", domain)
}

// parsePorts interprets the RFC 2965 port attribute: a bare attribute means
// "only the request port", a list restricts to those ports.
func parsePorts(u *url.URL, attr attribute) ([]uint16, error) {
	if !attr.hasValue || strings.TrimSpace(attr.value) == "" {
		return []uint16{effectivePort(u)}, nil
	}

	ports := make([]uint16, 0)
	for _, p := range strings.Split(attr.value, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing port %q", p)
		}
		ports = append(ports, uint16(v))
	}

	return ports, nil
}
