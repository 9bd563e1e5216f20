package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/statewalker/gitcore"
)

// Tag is the decoded form of an annotated tag object, per spec §3.
type Tag struct {
	ObjectHash   gitcore.Hash
	ObjectType   gitcore.ObjectType
	Name         string
	Tagger       *PersonIdent // nil if the tag has no tagger header
	Encoding     string
	PGPSignature string
	ExtraHeaders []header

	RawMessage []byte
}

// DecodeTag fully decodes a tag payload.
func DecodeTag(r io.Reader) (*Tag, error) {
	br := bufio.NewReader(r)
	headers, err := readHeaders(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
	}

	t := &Tag{}
	sawObject, sawType, sawName := false, false, false

	for _, h := range headers {
		switch h.Key {
		case "object":
			id, ok := gitcore.FromHex(h.Value)
			if !ok {
				return nil, fmt.Errorf("%w: invalid tag object id %q", gitcore.ErrCorruptObject, h.Value)
			}
			t.ObjectHash = id
			sawObject = true
		case "type":
			ot, err := gitcore.ParseObjectType(h.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
			}
			t.ObjectType = ot
			sawType = true
		case "tag":
			t.Name = h.Value
			sawName = true
		case "tagger":
			p, err := ParsePersonIdent(h.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
			}
			t.Tagger = &p
		case "encoding":
			t.Encoding = h.Value
		case "gpgsig":
			t.PGPSignature = h.Value
		default:
			t.ExtraHeaders = append(t.ExtraHeaders, header{Key: h.Key, Value: h.Value})
		}
	}

	if !sawObject || !sawType || !sawName {
		return nil, fmt.Errorf("%w: tag missing object/type/tag header", gitcore.ErrCorruptObject)
	}

	msg, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	t.RawMessage = msg
	return t, nil
}

// Encode writes the canonical tag serialization.
func (t *Tag) Encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "object %s\n", t.ObjectHash.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "type %s\n", t.ObjectType.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "tag %s\n", t.Name); err != nil {
		return err
	}
	if t.Tagger != nil {
		if err := writeHeader(w, "tagger", t.Tagger.String()); err != nil {
			return err
		}
	}
	if t.Encoding != "" {
		if err := writeHeader(w, "encoding", t.Encoding); err != nil {
			return err
		}
	}
	if t.PGPSignature != "" {
		if err := writeHeader(w, "gpgsig", t.PGPSignature); err != nil {
			return err
		}
	}
	for _, h := range t.ExtraHeaders {
		if err := writeHeader(w, h.Key, h.Value); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	_, err := w.Write(t.RawMessage)
	return err
}

// Bytes returns the canonical serialization.
func (t *Tag) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Message returns the tag message, transcoded per Encoding (see
// Commit.Message).
func (t *Tag) Message() (string, error) {
	return transcode(t.RawMessage, t.Encoding)
}
