package object

import (
	"bytes"
	"testing"

	"github.com/statewalker/gitcore"
	"github.com/stretchr/testify/require"
)

func TestTagRoundTrip(t *testing.T) {
	who, err := ParsePersonIdent("A U Thor <author@example.com> 1257894000 +0200")
	require.NoError(t, err)

	tag := &Tag{
		ObjectHash: gitcore.ComputeHash(gitcore.CommitObject, []byte("c")),
		ObjectType: gitcore.CommitObject,
		Name:       "v1.0.0",
		Tagger:     &who,
		RawMessage: []byte("release v1.0.0\n"),
	}

	payload, err := tag.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeTag(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, tag.ObjectHash, decoded.ObjectHash)
	require.Equal(t, tag.ObjectType, decoded.ObjectType)
	require.Equal(t, tag.Name, decoded.Name)
	require.Equal(t, tag.Tagger.String(), decoded.Tagger.String())
	require.Equal(t, tag.RawMessage, decoded.RawMessage)

	reencoded, err := decoded.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, reencoded)
}

func TestTagWithoutTagger(t *testing.T) {
	tag := &Tag{
		ObjectHash: gitcore.ComputeHash(gitcore.BlobObject, []byte("b")),
		ObjectType: gitcore.BlobObject,
		Name:       "lightweight-ish-annotated",
		RawMessage: []byte("msg\n"),
	}
	payload, err := tag.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeTag(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Nil(t, decoded.Tagger)
}
