package object

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// header is one parsed "key value[\ncontinuation...]" record from a commit
// or tag header block. Continuation lines (prefixed by exactly one space,
// as gpgsig's PEM-style armor uses) are folded back into Value, newline
// separated.
type header struct {
	Key   string
	Value string
}

// readHeaders reads header lines up to (and consuming) the first blank
// line, which separates headers from the message body. Git objects always
// have a blank-line separator, even for an empty message.
func readHeaders(br *bufio.Reader) ([]header, error) {
	var headers []header

	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		trimmed := strings.TrimSuffix(line, "\n")

		if trimmed == "" {
			return headers, nil
		}

		if strings.HasPrefix(trimmed, " ") {
			if len(headers) == 0 {
				return nil, fmt.Errorf("object: continuation line with no preceding header: %q", trimmed)
			}
			last := &headers[len(headers)-1]
			last.Value += "\n" + trimmed[1:]
		} else {
			sp := strings.IndexByte(trimmed, ' ')
			if sp < 0 {
				return nil, fmt.Errorf("object: malformed header line %q", trimmed)
			}
			headers = append(headers, header{Key: trimmed[:sp], Value: trimmed[sp+1:]})
		}

		if err == io.EOF {
			return nil, fmt.Errorf("object: unexpected EOF before blank line separator")
		}
	}
}

// writeHeader writes "key value" with any embedded newlines in value
// re-emitted as single-space-prefixed continuation lines.
func writeHeader(w io.Writer, key, value string) error {
	lines := strings.Split(value, "\n")
	if _, err := fmt.Fprintf(w, "%s %s\n", key, lines[0]); err != nil {
		return err
	}
	for _, l := range lines[1:] {
		if _, err := fmt.Fprintf(w, " %s\n", l); err != nil {
			return err
		}
	}
	return nil
}
