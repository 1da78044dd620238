// Package softauth is a software platform authenticator for terminals and
// tests. Credentials are ECDSA P-256 key pairs; the private key never leaves
// the credential ID, which is the key sealed under a device secret.
package softauth

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/authn"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/filex"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SecretSize is the length of the device secret.
const SecretSize = 32

const wrapInfo = "softauth credential wrap v1 "

// Prompt describes what the user is being asked to approve.
type Prompt struct {
	RPID        string
	UserName    string
	Registering bool
}

// Verifier proves user presence. Returning common.ErrUserCancelled (or a
// cancelled context) aborts the ceremony.
type Verifier interface {
	VerifyPresence(ctx context.Context, p Prompt) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, p Prompt) error

func (f VerifierFunc) VerifyPresence(ctx context.Context, p Prompt) error { return f(ctx, p) }

// AutoApprove is a Verifier that always succeeds.
var AutoApprove = VerifierFunc(func(context.Context, Prompt) error { return nil })

// Authenticator implements authn.Platform.
type Authenticator struct {
	secret   []byte
	verifier Verifier
	aaguid   uuid.UUID
	rand     io.Reader
}

type Option func(*Authenticator)

// WithAAGUID overrides the authenticator model identifier.
func WithAAGUID(id uuid.UUID) Option {
	return func(a *Authenticator) { a.aaguid = id }
}

// WithRand replaces the randomness source.
func WithRand(r io.Reader) Option {
	return func(a *Authenticator) { a.rand = r }
}

// New returns an Authenticator sealing credentials under secret.
func New(secret []byte, v Verifier, opts ...Option) (*Authenticator, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: device secret must be %d bytes", common.ErrInvalidInput, SecretSize)
	}
	a := &Authenticator{
		secret:   bytes.Clone(secret),
		verifier: v,
		aaguid:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("softauth")),
		rand:     rand.Reader,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// LoadOrCreateSecret reads the device secret at path, creating it with
// fresh random bytes and mode 0600 when missing.
func LoadOrCreateSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(b) != SecretSize {
			return nil, fmt.Errorf("%w: device secret %s has %d bytes", common.ErrIntegrity, path, len(b))
		}
		return b, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: read device secret: %v", common.ErrStorage, err)
	}

	b = make([]byte, SecretSize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	if err := filex.WritePrivateFile(path, b); err != nil {
		return nil, fmt.Errorf("%w: write device secret: %v", common.ErrStorage, err)
	}
	return b, nil
}

func (a *Authenticator) Available(context.Context) bool {
	return a.verifier != nil
}

func (a *Authenticator) Create(ctx context.Context, opts authn.CreationOptions) (*authn.Attestation, error) {
	if err := a.verifier.VerifyPresence(ctx, Prompt{RPID: opts.RPID, UserName: opts.UserName, Registering: true}); err != nil {
		return nil, err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), a.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: keygen: %v", common.ErrCapability, err)
	}
	credID, err := a.seal(opts.RPID, priv)
	if err != nil {
		return nil, err
	}
	pub, err := encodeCOSE(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	clientData, err := clientDataJSON(protocol.CreateCeremony, opts.Challenge, opts.Origin)
	if err != nil {
		return nil, err
	}

	return &authn.Attestation{
		CredentialID:   credID,
		PublicKey:      pub,
		AAGUID:         a.aaguid[:],
		DeviceType:     "singleDevice",
		Transports:     []string{"internal"},
		ClientDataJSON: clientData,
	}, nil
}

func (a *Authenticator) Get(ctx context.Context, opts authn.RequestOptions) (*authn.Assertion, error) {
	var (
		priv   *ecdsa.PrivateKey
		credID []byte
	)
	for _, id := range opts.AllowCredentials {
		if k, err := a.open(opts.RPID, id); err == nil {
			priv, credID = k, id
			break
		}
	}
	if priv == nil {
		return nil, fmt.Errorf("%w: no matching credential on this device", common.ErrAssertionMismatch)
	}

	if err := a.verifier.VerifyPresence(ctx, Prompt{RPID: opts.RPID}); err != nil {
		return nil, err
	}

	rpHash := sha256.Sum256([]byte(opts.RPID))
	authData := make([]byte, 0, sha256.Size+1+4)
	authData = append(authData, rpHash[:]...)
	authData = append(authData, byte(protocol.FlagUserPresent|protocol.FlagUserVerified))
	authData = binary.BigEndian.AppendUint32(authData, 0)

	clientData, err := clientDataJSON(protocol.AssertCeremony, opts.Challenge, opts.Origin)
	if err != nil {
		return nil, err
	}
	cdHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(bytes.Clone(authData), cdHash[:]...))
	sig, err := ecdsa.SignASN1(a.rand, priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", common.ErrCapability, err)
	}

	return &authn.Assertion{
		CredentialID:      bytes.Clone(credID),
		AuthenticatorData: authData,
		ClientDataJSON:    clientData,
		Signature:         sig,
	}, nil
}

// seal produces nonce || XChaCha20-Poly1305(der(priv)) bound to rpID.
func (a *Authenticator) seal(rpID string, priv *ecdsa.PrivateKey) ([]byte, error) {
	aead, err := a.wrapAEAD(rpID)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	defer common.WipeByteArray(der)

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(der)+aead.Overhead())
	if _, err := io.ReadFull(a.rand, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	rpHash := sha256.Sum256([]byte(rpID))
	return aead.Seal(nonce, nonce, der, rpHash[:]), nil
}

func (a *Authenticator) open(rpID string, credID []byte) (*ecdsa.PrivateKey, error) {
	aead, err := a.wrapAEAD(rpID)
	if err != nil {
		return nil, err
	}
	if len(credID) < aead.NonceSize()+aead.Overhead() {
		return nil, common.ErrAssertionMismatch
	}
	rpHash := sha256.Sum256([]byte(rpID))
	der, err := aead.Open(nil, credID[:aead.NonceSize()], credID[aead.NonceSize():], rpHash[:])
	if err != nil {
		return nil, common.ErrAssertionMismatch
	}
	defer common.WipeByteArray(der)
	return x509.ParseECPrivateKey(der)
}

func (a *Authenticator) wrapAEAD(rpID string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	defer common.WipeByteArray(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, a.secret, nil, []byte(wrapInfo+rpID)), key); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	return aead, nil
}

type coseEC2Key struct {
	Kty int    `cbor:"1,keyasint"`
	Alg int    `cbor:"3,keyasint"`
	Crv int    `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
	Y   []byte `cbor:"-3,keyasint"`
}

var coseEnc, _ = cbor.CTAP2EncOptions().EncMode()

func encodeCOSE(pub *ecdsa.PublicKey) ([]byte, error) {
	ek, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	point := ek.Bytes() // 0x04 || X || Y
	return coseEnc.Marshal(coseEC2Key{
		Kty: 2,  // EC2
		Alg: -7, // ES256
		Crv: 1,  // P-256
		X:   point[1:33],
		Y:   point[33:65],
	})
}

func clientDataJSON(t protocol.CeremonyType, challenge []byte, origin string) ([]byte, error) {
	b, err := json.Marshal(protocol.CollectedClientData{
		Type:      t,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}
	return b, nil
}
