package payload

import (
	"net/url"

	"github.com/pkg/errors"
)

// Form encodes values as application/x-www-form-urlencoded.
func Form(values url.Values) *Body {
	b := Literal([]byte(values.Encode()))
	b.ContentType = "application/x-www-form-urlencoded"
	return b
}

// FormParts encodes scalar parts as a form. Parts carrying files or streams
// cannot be form-encoded.
func FormParts(parts []Part) (*Body, error) {
	values := url.Values{}
	for _, p := range parts {
		if p.Name == "" {
			return nil, errors.New("form field without a name")
		}
		if p.File != "" || p.Stream != nil {
			return nil, errors.Errorf("form field %q carries a file; use multipart", p.Name)
		}
		values.Add(p.Name, p.Value)
	}
	return Form(values), nil
}
