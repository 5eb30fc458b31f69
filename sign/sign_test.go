package sign

import (
	"bytes"
	"context"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/stretchr/testify/require"
)

func newTestKeyPair(t *testing.T) (secretArmor, publicArmor string) {
	t.Helper()
	entity, err := openpgp.NewEntity("Test User", "", "test@example.com", nil)
	require.NoError(t, err)

	var priv bytes.Buffer
	w, err := armor.Encode(&priv, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())

	var pub bytes.Buffer
	w2, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w2))
	require.NoError(t, w2.Close())

	return priv.String(), pub.String()
}

func testCommit() *object.Commit {
	return &object.Commit{
		ChangeId:    objecthash.Of([]byte("change")),
		RootTree:    objecthash.Of([]byte("tree")),
		Description: "a test commit",
		Author:      object.Signature{Name: "Test User", Email: "test@example.com"},
		Committer:   object.Signature{Name: "Test User", Email: "test@example.com"},
	}
}

func TestOpenPGPSignAndVerifyRoundTrip(t *testing.T) {
	secretArmor, publicArmor := newTestKeyPair(t)
	ctx := context.Background()

	signer, err := Open("openpgp", map[string]string{"secret-key": secretArmor})
	require.NoError(t, err)
	verifier, err := Open("openpgp", map[string]string{"public-keyring": publicArmor})
	require.NoError(t, err)

	c := testCommit()
	require.NoError(t, Sign(ctx, signer, c, ""))
	require.NotEmpty(t, c.SecureSig)
	require.True(t, verifier.CanRead(c.SecureSig))

	result, err := Verify(ctx, verifier, c)
	require.NoError(t, err)
	require.Equal(t, Good, result.Status)
}

func TestVerifyReportsBadOnTamperedCommit(t *testing.T) {
	secretArmor, publicArmor := newTestKeyPair(t)
	ctx := context.Background()

	signer, err := Open("openpgp", map[string]string{"secret-key": secretArmor})
	require.NoError(t, err)
	verifier, err := Open("openpgp", map[string]string{"public-keyring": publicArmor})
	require.NoError(t, err)

	c := testCommit()
	require.NoError(t, Sign(ctx, signer, c, ""))

	c.Description = "tampered after signing"
	result, err := Verify(ctx, verifier, c)
	require.NoError(t, err)
	require.Equal(t, Bad, result.Status)
}

func TestVerifyUnknownWhenSignerKeyNotInKeyring(t *testing.T) {
	secretArmor, _ := newTestKeyPair(t)
	_, otherPublicArmor := newTestKeyPair(t) // unrelated key pair
	ctx := context.Background()

	signer, err := Open("openpgp", map[string]string{"secret-key": secretArmor})
	require.NoError(t, err)
	verifier, err := Open("openpgp", map[string]string{"public-keyring": otherPublicArmor})
	require.NoError(t, err)

	c := testCommit()
	require.NoError(t, Sign(ctx, signer, c, ""))

	result, err := Verify(ctx, verifier, c)
	require.NoError(t, err)
	require.Equal(t, Unknown, result.Status)
}

func TestVerifyUnknownWhenUnsigned(t *testing.T) {
	_, publicArmor := newTestKeyPair(t)
	verifier, err := Open("openpgp", map[string]string{"public-keyring": publicArmor})
	require.NoError(t, err)

	result, err := Verify(context.Background(), verifier, testCommit())
	require.NoError(t, err)
	require.Equal(t, Unknown, result.Status)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("does-not-exist", nil)
	require.Error(t, err)
}

func TestPolicyDropStripsSignature(t *testing.T) {
	secretArmor, _ := newTestKeyPair(t)
	signer, err := Open("openpgp", map[string]string{"secret-key": secretArmor})
	require.NoError(t, err)

	c := testCommit()
	require.NoError(t, Sign(context.Background(), signer, c, ""))
	require.NotEmpty(t, c.SecureSig)

	user := object.Signature{Name: "Test User", Email: "test@example.com"}
	require.NoError(t, Apply(context.Background(), PolicyDrop, signer, c, "", user))
	require.Empty(t, c.SecureSig)
}

func TestPolicyOwnSignsOnlyOwnCommits(t *testing.T) {
	secretArmor, _ := newTestKeyPair(t)
	signer, err := Open("openpgp", map[string]string{"secret-key": secretArmor})
	require.NoError(t, err)

	user := object.Signature{Name: "Test User", Email: "test@example.com"}
	other := object.Signature{Name: "Someone Else", Email: "else@example.com"}

	own := testCommit()
	own.Author = user
	require.NoError(t, Apply(context.Background(), PolicyOwn, signer, own, "", user))
	require.NotEmpty(t, own.SecureSig)

	foreign := testCommit()
	foreign.Author = other
	require.NoError(t, Apply(context.Background(), PolicyOwn, signer, foreign, "", user))
	require.Empty(t, foreign.SecureSig)
}
