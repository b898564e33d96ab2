package plugin

import (
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/teranos/inkr/errors"
)

// Encoding looks up an IANA charset name (case-insensitive, aliases
// accepted). Empty means UTF-8, for which nil is returned: input is used
// as is.
func Encoding(charset string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	// known names without a decoder come back as nil, nil
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("unsupported charset %q", charset),
			"use an IANA charset name such as utf-8, iso-8859-1 or windows-1252")
	}
	return enc, nil
}

// CheckCharset rejects charsets readers cannot decode
func CheckCharset(charset string) error {
	_, err := Encoding(charset)
	return err
}

// ReadFile reads path and decodes it from charset to UTF-8
func ReadFile(path, charset string) ([]byte, error) {
	enc, err := Encoding(charset)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return data, nil
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, errors.WithDetailf(
			errors.NewInvalidRequestError("cannot decode %s as %s", path, charset),
			"%v", err)
	}
	return decoded, nil
}
