// Package encoding decodes legacy text encodings found in map files.
package encoding

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// ErrUnsupportedCharset is returned for charsets without a decoder.
var ErrUnsupportedCharset = errors.New("unsupported charset")

// CharsetReader converts input in the named charset to UTF-8. It has the
// signature of xml.Decoder.CharsetReader.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(label))
	switch name {
	case "", "utf-8", "utf8", "us-ascii":
		return input, nil
	case "cp949", "uhc":
		// Windows Korean is a superset of EUC-KR and not in the IANA index.
		return transform.NewReader(input, korean.EUCKR.NewDecoder()), nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCharset, label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// ToUTF8 decodes data in the named charset. Data that does not decode is
// returned unchanged.
func ToUTF8(data []byte, label string) string {
	r, err := CharsetReader(label, strings.NewReader(string(data)))
	if err != nil {
		return string(data)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(out)
}
