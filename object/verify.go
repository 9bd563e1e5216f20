package object

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"golang.org/x/crypto/ssh"
)

// Signable is anything carrying a detached PGP/SSH signature plus the
// ability to re-encode itself without that signature, which is what both
// signature schemes sign over. Commit and Tag both satisfy it.
type Signable interface {
	Signature() string
	EncodeWithoutSignature() ([]byte, error)
}

// Signature returns the commit's signature text (gpgsig), if any.
func (c *Commit) Signature() string { return c.PGPSignature }

// EncodeWithoutSignature re-encodes the commit with PGPSignature cleared,
// the exact bytes Git signs.
func (c *Commit) EncodeWithoutSignature() ([]byte, error) {
	cp := *c
	cp.PGPSignature = ""
	return cp.Bytes()
}

// Signature returns the tag's signature text (gpgsig), if any.
func (t *Tag) Signature() string { return t.PGPSignature }

// EncodeWithoutSignature re-encodes the tag with PGPSignature cleared.
func (t *Tag) EncodeWithoutSignature() ([]byte, error) {
	cp := *t
	cp.PGPSignature = ""
	return cp.Bytes()
}

// VerifyGPG checks a Signable's detached, armored PGP signature against a
// keyring, returning the entity that produced it.
func VerifyGPG(obj Signable, keyring openpgp.EntityList) (*openpgp.Entity, error) {
	sig := obj.Signature()
	if sig == "" {
		return nil, errors.New("object: no PGP signature present")
	}

	payload, err := obj.EncodeWithoutSignature()
	if err != nil {
		return nil, err
	}

	entity, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(payload), strings.NewReader(sig), nil)
	if err != nil {
		return nil, fmt.Errorf("object: PGP signature verification failed: %w", err)
	}
	return entity, nil
}

// sshsigMagic is the fixed preamble Git/OpenSSH's SSHSIG envelope starts
// with (see PROTOCOL.sshsig in OpenSSH's source).
const sshsigMagic = "SSHSIG"

// sshSignature is the decoded form of an SSHSIG envelope: enough to verify
// a detached signature without needing a PEM/armor library of its own.
type sshSignature struct {
	PublicKey     ssh.PublicKey
	Namespace     string
	HashAlgorithm string
	Blob          []byte // the raw ssh.Signature wire blob
}

// parseSSHSig decodes the base64 PEM-like "-----BEGIN SSH SIGNATURE-----"
// armor Git stores in a commit/tag's gpgsig header when signed with an SSH
// key, into its constituent fields.
func parseSSHSig(armored string) (*sshSignature, error) {
	const beginMarker = "-----BEGIN SSH SIGNATURE-----"
	const endMarker = "-----END SSH SIGNATURE-----"

	start := strings.Index(armored, beginMarker)
	end := strings.Index(armored, endMarker)
	if start < 0 || end < 0 || end < start {
		return nil, errors.New("object: not an SSH signature armor")
	}
	body := armored[start+len(beginMarker) : end]
	body = strings.ReplaceAll(body, "\n", "")
	body = strings.TrimSpace(body)

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("object: invalid SSH signature base64: %w", err)
	}

	if len(raw) < len(sshsigMagic) || string(raw[:len(sshsigMagic)]) != sshsigMagic {
		return nil, errors.New("object: bad SSH signature magic")
	}
	r := raw[len(sshsigMagic):]

	readUint32 := func() (uint32, error) {
		if len(r) < 4 {
			return 0, errors.New("object: truncated SSH signature")
		}
		v := binary.BigEndian.Uint32(r[:4])
		r = r[4:]
		return v, nil
	}
	readString := func() (string, error) {
		n, err := readUint32()
		if err != nil {
			return "", err
		}
		if uint32(len(r)) < n {
			return "", errors.New("object: truncated SSH signature field")
		}
		s := r[:n]
		r = r[n:]
		return string(s), nil
	}

	if _, err := readUint32(); err != nil { // version
		return nil, err
	}
	pkBlob, err := readString()
	if err != nil {
		return nil, err
	}
	namespace, err := readString()
	if err != nil {
		return nil, err
	}
	if _, err := readString(); err != nil { // reserved
		return nil, err
	}
	hashAlg, err := readString()
	if err != nil {
		return nil, err
	}
	sigBlob, err := readString()
	if err != nil {
		return nil, err
	}

	pub, err := ssh.ParsePublicKey([]byte(pkBlob))
	if err != nil {
		return nil, fmt.Errorf("object: invalid SSH public key in signature: %w", err)
	}

	return &sshSignature{
		PublicKey:     pub,
		Namespace:     namespace,
		HashAlgorithm: hashAlg,
		Blob:          []byte(sigBlob),
	}, nil
}

// sshSigMessage reconstructs the exact bytes OpenSSH hashes and signs for a
// detached signature: the "SSHSIG" magic, namespace, reserved field, hash
// algorithm name, and the digest of the signed payload.
func sshSigMessage(namespace, hashAlg string, digest []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(sshsigMagic)
	writeStr := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf.Write(lenBuf[:])
		buf.WriteString(s)
	}
	writeStr(namespace)
	writeStr("") // reserved
	writeStr(hashAlg)
	writeStr(string(digest))
	return buf.Bytes()
}

func sshDigest(hashAlg string, payload []byte) ([]byte, error) {
	var h hash.Hash
	switch hashAlg {
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return nil, fmt.Errorf("object: unsupported SSH signature hash %q", hashAlg)
	}
	h.Write(payload)
	return h.Sum(nil), nil
}

// VerifySSH checks a Signable's detached SSH ("git commit -S" with
// gpg.format=ssh) signature against an expected public key and the
// namespace Git uses for commit/tag signing ("git" or "git-tag" in Git's
// own SSHSIG usage convention).
func VerifySSH(obj Signable, expected ssh.PublicKey, namespace string) error {
	sig := obj.Signature()
	if sig == "" {
		return errors.New("object: no SSH signature present")
	}

	parsed, err := parseSSHSig(sig)
	if err != nil {
		return err
	}
	if namespace != "" && parsed.Namespace != namespace {
		return fmt.Errorf("object: SSH signature namespace %q does not match expected %q", parsed.Namespace, namespace)
	}
	if !bytes.Equal(parsed.PublicKey.Marshal(), expected.Marshal()) {
		return errors.New("object: SSH signature was produced by a different key")
	}

	payload, err := obj.EncodeWithoutSignature()
	if err != nil {
		return err
	}
	digest, err := sshDigest(parsed.HashAlgorithm, payload)
	if err != nil {
		return err
	}
	message := sshSigMessage(parsed.Namespace, parsed.HashAlgorithm, digest)

	var wireSig ssh.Signature
	if err := ssh.Unmarshal(parsed.Blob, &wireSig); err != nil {
		return fmt.Errorf("object: invalid SSH signature blob: %w", err)
	}

	if err := expected.Verify(message, &wireSig); err != nil {
		return fmt.Errorf("object: SSH signature verification failed: %w", err)
	}
	return nil
}
