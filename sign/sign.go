// Package sign implements the SigningBackend contract of spec §4.10:
// commits are signed by hashing their canonical byte form excluding
// secure_sig, and verified by recomputing those same bytes. Backends
// register themselves by name in a registry, the same pattern
// store.Register/Open uses.
package sign

import (
	"bytes"
	"context"
	"fmt"

	"github.com/martinvonz/jjrepo/object"
)

// Status is the outcome of verifying a signature (spec §4.10: "{status:
// Good|Bad|Unknown, key?, display?}").
type Status int8

const (
	Unknown Status = iota
	Good
	Bad
)

func (s Status) String() string {
	switch s {
	case Good:
		return "good"
	case Bad:
		return "bad"
	default:
		return "unknown"
	}
}

// VerifyResult is a signature check's full outcome.
type VerifyResult struct {
	Status  Status
	KeyId   string
	Display string
}

// Backend is the capability set a signing implementation provides
// (spec §4.10's SigningBackend: name, can_read, sign, verify).
type Backend interface {
	Name() string
	// CanRead reports whether data looks like a signature this backend
	// produced (e.g. an OpenPGP armor header), so a commit's secure_sig
	// can be routed to the right backend without out-of-band metadata.
	CanRead(data []byte) bool
	Sign(ctx context.Context, data []byte, key string) ([]byte, error)
	Verify(ctx context.Context, data, sig []byte) (VerifyResult, error)
}

var registry = map[string]func(config map[string]string) (Backend, error){}

// Register adds a backend factory under name. Called from init() by
// each backend implementation package (here, openpgp.go's own init).
func Register(name string, open func(config map[string]string) (Backend, error)) {
	registry[name] = open
}

// Open instantiates the named backend.
func Open(name string, config map[string]string) (Backend, error) {
	open, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("sign: unknown backend %q", name)
	}
	return open(config)
}

// CanonicalBytes returns the exact bytes a commit is signed over: its
// encoded form with SecureSig excluded (spec §4.10).
func CanonicalBytes(c *object.Commit) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodeForSigning(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sign signs commit with backend and key, storing the result in
// commit.SecureSig. It does not mutate any other field, so the commit's
// canonical bytes (and therefore its hash) are unaffected by signing
// (spec §4.10: "hashing its canonical byte form excluding secure_sig").
func Sign(ctx context.Context, b Backend, c *object.Commit, key string) error {
	data, err := CanonicalBytes(c)
	if err != nil {
		return err
	}
	sig, err := b.Sign(ctx, data, key)
	if err != nil {
		return err
	}
	c.SecureSig = sig
	return nil
}

// Verify recomputes commit's canonical bytes and checks them against
// its recorded SecureSig. It reports Unknown, not an error, when the
// commit carries no signature at all.
func Verify(ctx context.Context, b Backend, c *object.Commit) (VerifyResult, error) {
	if len(c.SecureSig) == 0 {
		return VerifyResult{Status: Unknown}, nil
	}
	data, err := CanonicalBytes(c)
	if err != nil {
		return VerifyResult{}, err
	}
	return b.Verify(ctx, data, c.SecureSig)
}
