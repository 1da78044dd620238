package authn

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/models"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// authData = rpIdHash(32) | flags(1) | signCount(4) [| extensions]
const minAuthDataLen = sha256.Size + 1 + 4

// Options identify the relying party the gateway speaks for.
type Options struct {
	RPID   string
	RPName string
	Origin string
	// RequireUserVerification rejects assertions without the UV flag.
	RequireUserVerification bool
}

// Gateway registers and exercises platform credentials.
type Gateway struct {
	platform Platform
	opts     Options
	log      logging.Logger
	now      func() time.Time
}

// NewGateway binds a Platform to a relying party.
func NewGateway(p Platform, opts Options, log logging.Logger) *Gateway {
	if opts.RPName == "" {
		opts.RPName = opts.RPID
	}
	return &Gateway{platform: p, opts: opts, log: log, now: time.Now}
}

// IsSupported reports whether the platform can run ceremonies right now.
func (g *Gateway) IsSupported(ctx context.Context) bool {
	return g.platform != nil && g.platform.Available(ctx)
}

// RegisterCredential creates a platform-bound credential for userID.
func (g *Gateway) RegisterCredential(ctx context.Context, userID, displayName string) (*models.Credential, error) {
	if !g.IsSupported(ctx) {
		return nil, fmt.Errorf("%w: platform authenticator unavailable", common.ErrCapability)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", common.ErrInvalidInput)
	}

	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, fmt.Errorf("%w: challenge: %v", common.ErrCapability, err)
	}

	att, err := g.platform.Create(ctx, CreationOptions{
		Challenge:   challenge,
		RPID:        g.opts.RPID,
		RPName:      g.opts.RPName,
		Origin:      g.opts.Origin,
		UserID:      []byte(userID),
		UserName:    displayName,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, platformError("create", err)
	}

	if err := g.verifyClientData(att.ClientDataJSON, protocol.CreateCeremony, challenge); err != nil {
		return nil, err
	}
	if len(att.CredentialID) == 0 {
		return nil, fmt.Errorf("%w: empty credential id", common.ErrAssertionMismatch)
	}
	if _, err := webauthncose.ParsePublicKey(att.PublicKey); err != nil {
		return nil, fmt.Errorf("%w: unusable credential public key: %v", common.ErrCapability, err)
	}

	cred := &models.Credential{
		ID:         base64.RawURLEncoding.EncodeToString(att.CredentialID),
		PublicKey:  bytes.Clone(att.PublicKey),
		Counter:    att.SignCount,
		DeviceType: att.DeviceType,
		BackedUp:   att.BackedUp,
		Transports: append([]string(nil), att.Transports...),
		CreatedAt:  g.now().UTC(),
	}
	g.log.Info(ctx, "credential registered", "credential", ShortID(cred.ID), "device_type", cred.DeviceType)
	return cred, nil
}

// Authenticate prompts for a presence proof with cred and verifies the result.
// It has no side effects on stored state.
func (g *Gateway) Authenticate(ctx context.Context, cred *models.Credential) (*Assertion, error) {
	if cred == nil {
		return nil, fmt.Errorf("%w: no credential", common.ErrNotFound)
	}
	if !g.IsSupported(ctx) {
		return nil, fmt.Errorf("%w: platform authenticator unavailable", common.ErrCapability)
	}

	rawID, err := base64.RawURLEncoding.DecodeString(cred.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed credential id: %v", common.ErrInvalidInput, err)
	}
	pub, err := webauthncose.ParsePublicKey(cred.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unusable credential public key: %v", common.ErrCapability, err)
	}

	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, fmt.Errorf("%w: challenge: %v", common.ErrCapability, err)
	}

	a, err := g.platform.Get(ctx, RequestOptions{
		Challenge:        challenge,
		RPID:             g.opts.RPID,
		Origin:           g.opts.Origin,
		AllowCredentials: [][]byte{rawID},
	})
	if err != nil {
		return nil, platformError("get", err)
	}

	if !bytes.Equal(a.CredentialID, rawID) {
		return nil, fmt.Errorf("%w: assertion for a different credential", common.ErrAssertionMismatch)
	}
	if err := g.verifyClientData(a.ClientDataJSON, protocol.AssertCeremony, challenge); err != nil {
		return nil, err
	}
	counter, err := g.verifyAuthData(a.AuthenticatorData)
	if err != nil {
		return nil, err
	}
	if counter != 0 && counter <= cred.Counter {
		return nil, fmt.Errorf("%w: sign counter did not advance", common.ErrAssertionMismatch)
	}

	clientDataHash := sha256.Sum256(a.ClientDataJSON)
	signed := append(bytes.Clone(a.AuthenticatorData), clientDataHash[:]...)
	ok, err := webauthncose.VerifySignature(pub, signed, a.Signature)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: bad signature", common.ErrAssertionMismatch)
	}

	g.log.Debug(ctx, "assertion verified", "credential", ShortID(cred.ID))
	return a, nil
}

func (g *Gateway) verifyClientData(raw []byte, want protocol.CeremonyType, challenge []byte) error {
	var cd protocol.CollectedClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return fmt.Errorf("%w: client data: %v", common.ErrAssertionMismatch, err)
	}
	if cd.Type != want {
		return fmt.Errorf("%w: ceremony %q, want %q", common.ErrAssertionMismatch, cd.Type, want)
	}
	if cd.Challenge != base64.RawURLEncoding.EncodeToString(challenge) {
		return fmt.Errorf("%w: challenge mismatch", common.ErrAssertionMismatch)
	}
	if g.opts.Origin != "" && cd.Origin != g.opts.Origin {
		return fmt.Errorf("%w: origin %q", common.ErrAssertionMismatch, cd.Origin)
	}
	return nil
}

func (g *Gateway) verifyAuthData(authData []byte) (uint32, error) {
	if len(authData) < minAuthDataLen {
		return 0, fmt.Errorf("%w: authenticator data too short", common.ErrAssertionMismatch)
	}
	rpHash := sha256.Sum256([]byte(g.opts.RPID))
	if !bytes.Equal(authData[:sha256.Size], rpHash[:]) {
		return 0, fmt.Errorf("%w: relying party mismatch", common.ErrAssertionMismatch)
	}
	flags := protocol.AuthenticatorFlags(authData[sha256.Size])
	if !flags.UserPresent() {
		return 0, fmt.Errorf("%w: user not present", common.ErrAssertionMismatch)
	}
	if g.opts.RequireUserVerification && !flags.UserVerified() {
		return 0, fmt.Errorf("%w: user not verified", common.ErrAssertionMismatch)
	}
	return binary.BigEndian.Uint32(authData[sha256.Size+1 : minAuthDataLen]), nil
}

// platformError normalizes what a Platform returned into the error taxonomy.
func platformError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", common.ErrUserCancelled, op, err)
	case errors.Is(err, common.ErrUserCancelled),
		errors.Is(err, common.ErrCapability),
		errors.Is(err, common.ErrAssertionMismatch):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%w: %s: %v", common.ErrAuthenticatorFailed, op, err)
	}
}

// ShortID trims a base64url credential id for log output.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "…"
}
