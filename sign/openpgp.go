package sign

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	pgperrors "github.com/ProtonMail/go-crypto/openpgp/errors"
)

func init() {
	Register("openpgp", openOpenPGP)
}

// openPGPBackend signs commits the way the teacher's buildCommitSignature
// does (pkg/zeta/tree.go): encode the commit, then
// openpgp.ArmoredDetachSign the encoded bytes with the configured key.
// Verification has no equivalent in the pack; it follows
// ProtonMail/go-crypto/openpgp's own CheckArmoredDetachedSignature and
// ReadArmoredKeyRing contract instead.
type openPGPBackend struct {
	// secring holds the private keys Sign may use, keyed by the key id
	// string passed to Sign.
	secring openpgp.EntityList
	// keyring holds the public keys Verify checks signatures against.
	keyring openpgp.EntityList
}

func openOpenPGP(config map[string]string) (Backend, error) {
	b := &openPGPBackend{}
	if armored := config["secret-key"]; armored != "" {
		entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
		if err != nil {
			return nil, fmt.Errorf("sign: reading secret keyring: %w", err)
		}
		b.secring = entities
	}
	if armored := config["public-keyring"]; armored != "" {
		entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
		if err != nil {
			return nil, fmt.Errorf("sign: reading public keyring: %w", err)
		}
		b.keyring = entities
	}
	return b, nil
}

func (b *openPGPBackend) Name() string { return "openpgp" }

// CanRead reports whether data is an ASCII-armored OpenPGP signature
// block, the only form this backend produces or accepts.
func (b *openPGPBackend) CanRead(data []byte) bool {
	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return block.Type == "PGP SIGNATURE"
}

func (b *openPGPBackend) findSecretKey(keyId string) *openpgp.Entity {
	if keyId == "" && len(b.secring) > 0 {
		return b.secring[0]
	}
	for _, e := range b.secring {
		if e.PrimaryKey != nil && e.PrimaryKey.KeyIdString() == keyId {
			return e
		}
	}
	return nil
}

func (b *openPGPBackend) Sign(ctx context.Context, data []byte, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	entity := b.findSecretKey(key)
	if entity == nil {
		return nil, fmt.Errorf("sign: openpgp: no secret key %q available", key)
	}
	var out bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&out, entity, bytes.NewReader(data), nil); err != nil {
		return nil, fmt.Errorf("sign: openpgp: %w", err)
	}
	return out.Bytes(), nil
}

func (b *openPGPBackend) Verify(ctx context.Context, data, sig []byte) (VerifyResult, error) {
	select {
	case <-ctx.Done():
		return VerifyResult{}, ctx.Err()
	default:
	}
	entity, err := openpgp.CheckArmoredDetachedSignature(b.keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	if err != nil {
		if errors.Is(err, pgperrors.ErrUnknownIssuer) {
			return VerifyResult{Status: Unknown}, nil
		}
		return VerifyResult{Status: Bad}, nil
	}
	result := VerifyResult{Status: Good}
	if entity.PrimaryKey != nil {
		result.KeyId = entity.PrimaryKey.KeyIdString()
	}
	for _, ident := range entity.Identities {
		result.Display = ident.Name
		break
	}
	return result, nil
}
