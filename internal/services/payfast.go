package services

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignatureField is the form field carrying the PayFast signature.
const SignatureField = "signature"

// Signer computes and checks PayFast form signatures. The digest is MD5
// because the gateway protocol mandates it.
type Signer struct {
	Passphrase string
	// PlusForSpace encodes spaces as "+" instead of "%20".
	PlusForSpace bool
}

// Sign returns the signature over fields using passphrase, with spaces
// percent-encoded.
func Sign(fields map[string]string, passphrase string) string {
	return Signer{Passphrase: passphrase}.Sign(fields)
}

// Verify reports whether fields carry a valid signature for passphrase.
func Verify(fields map[string]string, passphrase string) bool {
	return Signer{Passphrase: passphrase}.Verify(fields)
}

// Sign builds key=value pairs sorted by key (byte order), excluding the
// signature field, appends the passphrase when set and returns the lowercase
// hex MD5 of the result.
func (s Signer) Sign(fields map[string]string) string {
	sum := md5.Sum([]byte(s.payload(fields)))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature over fields and compares it with the
// inbound signature field, case-sensitively. A missing signature is invalid.
// fields is not modified.
func (s Signer) Verify(fields map[string]string) bool {
	got, ok := fields[SignatureField]
	if !ok {
		return false
	}
	want := s.Sign(fields)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s Signer) payload(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.encode(fields[k]))
	}
	if s.Passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(s.encode(s.Passphrase))
	}
	return b.String()
}

// encode percent-encodes everything outside A-Z a-z 0-9 - _ . ~ with
// uppercase hex. QueryEscape already does that except for spaces, which it
// turns into "+"; a literal "+" comes out as "%2B", so the swap is safe.
func (s Signer) encode(v string) string {
	e := url.QueryEscape(v)
	if s.PlusForSpace {
		return e
	}
	return strings.ReplaceAll(e, "+", "%20")
}
