package authn

import "context"

// Platform is the device biometric capability. Implementations return
// common.ErrUserCancelled when the user dismisses the prompt and
// common.ErrCapability when the device cannot perform the ceremony.
type Platform interface {
	Available(ctx context.Context) bool
	Create(ctx context.Context, opts CreationOptions) (*Attestation, error)
	Get(ctx context.Context, opts RequestOptions) (*Assertion, error)
}

// CreationOptions describe a credential registration request.
type CreationOptions struct {
	Challenge   []byte
	RPID        string
	RPName      string
	Origin      string
	UserID      []byte
	UserName    string
	DisplayName string
}

// Attestation is the platform's answer to Create. PublicKey is a COSE_Key.
type Attestation struct {
	CredentialID   []byte
	PublicKey      []byte
	AAGUID         []byte
	SignCount      uint32
	DeviceType     string
	BackedUp       bool
	Transports     []string
	ClientDataJSON []byte
}

// RequestOptions describe an assertion request.
type RequestOptions struct {
	Challenge        []byte
	RPID             string
	Origin           string
	AllowCredentials [][]byte
}

// Assertion is the platform's answer to Get.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}
