package object

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// transcode converts raw bytes from the named charset (a commit/tag
// "encoding" header value, e.g. "ISO-8859-1") to a UTF-8 string. An empty
// name, or one that already means UTF-8, is returned unchanged.
func transcode(raw []byte, name string) (string, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return string(raw), nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return "", fmt.Errorf("object: unknown message encoding %q: %w", name, err)
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("object: failed to transcode message from %q: %w", name, err)
	}
	return string(out), nil
}
