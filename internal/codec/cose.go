package codec

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/veraison/go-cose"
)

// ErrVerificationFailed is returned when a COSE_Sign1 envelope's signature
// does not validate against the supplied public key.
var ErrVerificationFailed = errors.New("codec: COSE_Sign1 verification failed")

// Signer produces an Ed25519 signature over arbitrary bytes. Implemented by
// internal/credentials.Credentials; kept as a narrow interface here so the
// codec package never imports credentials (no import cycle, and it makes
// the envelope testable with a bare key pair).
type Signer interface {
	Sign(data []byte) []byte
	PublicKey() ed25519.PublicKey
}

// Sign1 only carries an external AAD value and has no methods. COSE_Sign1
// (RFC 8152 §4.2) envelopes wrapping a CBOR payload, tagged 18, with
// alg = -8 (EdDSA), are built and checked by the package-level Sign,
// Verify and ParseUnverified functions.
type Sign1 struct {
	ExternalAAD []byte
}

// Sign produces the tag-18 CBOR envelope
// [protected-header-bytes, unprotected-header-map, payload-bytes, signature-bytes]
// signing the RFC 8152 Sig_structure over payload with signer's key.
func Sign(payload []byte, signer Signer, externalAAD []byte) ([]byte, error) {
	coseSigner, err := cose.NewSigner(cose.AlgorithmEdDSA, ed25519Signer{signer})
	if err != nil {
		return nil, fmt.Errorf("codec: build cose signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers = cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmEdDSA,
		},
		Unprotected: cose.UnprotectedHeader{},
	}
	msg.Payload = payload

	if err := msg.Sign(devZeroRand{}, externalAAD, coseSigner); err != nil {
		return nil, fmt.Errorf("codec: sign COSE_Sign1: %w", err)
	}

	raw, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("codec: marshal COSE_Sign1: %w", err)
	}
	return raw, nil
}

// Verify parses raw as a tagged COSE_Sign1 envelope and checks its
// signature against publicKey, returning the inner payload on success.
// Any parse error, algorithm mismatch, or signature mismatch is reported
// as ErrVerificationFailed (spec §7: "Parse/crypto failure... message is
// dropped"), wrapping the underlying cause for logging.
func Verify(raw []byte, publicKey ed25519.PublicKey, externalAAD []byte) ([]byte, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(raw); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", ErrVerificationFailed, err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmEdDSA, publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: build verifier: %v", ErrVerificationFailed, err)
	}

	if err := msg.Verify(externalAAD, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return msg.Payload, nil
}

// ParseUnverified parses raw as a tagged COSE_Sign1 envelope and returns
// its inner payload without checking the signature. Inbound device
// messages (scripts, events) are signed by the owner/creator account, a
// key the device never holds, so there is nothing to verify against on
// ingress; this mirrors the original firmware's MQTTKit::_readCOSEMessage,
// which only parses the CBOR structure and extracts the payload (spec §6:
// "accepted only if the outer CBOR parses as COSE_Sign1 with matching
// structure"). Any malformed envelope is reported as ErrVerificationFailed
// so callers can drop it the same way a failed Verify would be dropped.
func ParseUnverified(raw []byte) ([]byte, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(raw); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", ErrVerificationFailed, err)
	}
	return msg.Payload, nil
}

// ed25519Signer adapts our narrow Signer interface to crypto.Signer, which
// go-cose's NewSigner expects.
type ed25519Signer struct {
	s Signer
}

func (e ed25519Signer) Public() crypto.PublicKey { return e.s.PublicKey() }

func (e ed25519Signer) Sign(_ io.Reader, digest []byte, _ crypto.SignerOpts) ([]byte, error) {
	return e.s.Sign(digest), nil
}

// devZeroRand is an io.Reader that go-cose's Sign only consults for
// algorithms that need fresh per-signature randomness (ECDSA); EdDSA
// signatures are deterministic per RFC 8032, so this is never actually
// read, but cose.Sign1Message.Sign requires a non-nil io.Reader argument.
type devZeroRand struct{}

func (devZeroRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
