package activitypub

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"

	"code.superseriousbusiness.org/httpsig"
)

// signedHeaders is the set of headers covered by every outbound signature,
// matching the draft-cavage HTTP Signatures profile ActivityPub federation
// has settled on: the request line, Host, Date, and a body digest.
var signedHeaders = []string{httpsig.RequestTarget, "host", "date", "digest"}

// ParsePrivateKey decodes a PEM-encoded RSA private key, accepting both
// PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") encodings so keys
// minted by older and newer instances both verify (see util.GeneratePemKeypair).
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("httpsig: failed to decode PEM block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("httpsig: failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("httpsig: private key is not RSA")
	}
	return key, nil
}

// ParsePublicKey decodes a PEM-encoded RSA public key, accepting both
// PKCS#1 ("RSA PUBLIC KEY") and PKIX ("PUBLIC KEY") encodings.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("httpsig: failed to decode PEM block")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("httpsig: failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("httpsig: public key is not RSA")
	}
	return key, nil
}

// SignRequest attaches a draft-cavage HTTP Signature to req, covering
// (request-target), Host, Date and Digest. The caller is expected to have
// already set Host, Date and Digest headers; SignRequest rereads the body
// via req.GetBody (set automatically by http.NewRequest for in-memory
// readers) so the digest the signer computes matches what was already set.
func SignRequest(req *http.Request, privateKey *rsa.PrivateKey, keyId string) error {
	var body []byte
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err == nil {
			body, _ = io.ReadAll(rc)
			rc.Close()
		}
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		signedHeaders,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("httpsig: failed to build signer: %w", err)
	}
	if err := signer.SignRequest(privateKey, keyId, req, body); err != nil {
		return fmt.Errorf("httpsig: failed to sign request: %w", err)
	}
	return nil
}

// VerifyRequest validates the Signature header against publicKeyPEM and
// returns the actor URI the keyId resolves to (the keyId with any #fragment
// stripped, per the convention of §4.1's `{actor}#main-key` IDs).
func VerifyRequest(req *http.Request, publicKeyPEM string) (string, error) {
	publicKey, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("httpsig: %w", err)
	}

	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("httpsig: failed to parse signature: %w", err)
	}

	if err := verifier.Verify(publicKey, httpsig.RSA_SHA256); err != nil {
		return "", fmt.Errorf("httpsig: signature verification failed: %w", err)
	}

	keyId := verifier.KeyId()
	actorURI, _, _ := strings.Cut(keyId, "#")
	return actorURI, nil
}

// ExtractKeyId reads the keyId parameter off the request's Signature header
// without verifying anything, so the caller can resolve the signer's actor
// document (and its public key) before calling VerifyRequest (§4.2).
func ExtractKeyId(req *http.Request) (string, error) {
	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("httpsig: failed to parse signature: %w", err)
	}
	return verifier.KeyId(), nil
}

// ActorURIFromKeyId strips the #fragment from a keyId, yielding the actor's
// canonical ap_id.
func ActorURIFromKeyId(keyId string) string {
	actorURI, _, _ := strings.Cut(keyId, "#")
	return actorURI
}
