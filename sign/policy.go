package sign

import (
	"context"

	"github.com/martinvonz/jjrepo/object"
)

// Policy governs whether a rewritten commit keeps, drops, or renews its
// signature (spec §4.10: "Own (sign only commits authored by configured
// user), Force, Drop (remove signature). Re-signing after rewrite is
// governed by policy, not forced").
type Policy int8

const (
	// PolicyOwn signs only commits authored by user, and otherwise
	// leaves an existing signature alone.
	PolicyOwn Policy = iota
	// PolicyForce (re-)signs every commit it is applied to, regardless
	// of author.
	PolicyForce
	// PolicyDrop strips any existing signature and signs nothing.
	PolicyDrop
)

// Apply resigns or strips c's signature per p after a rewrite, using
// backend b and key for any signing it performs. user identifies the
// local user for PolicyOwn's authorship check.
func Apply(ctx context.Context, p Policy, b Backend, c *object.Commit, key string, user object.Signature) error {
	switch p {
	case PolicyDrop:
		c.SecureSig = nil
		return nil
	case PolicyForce:
		return Sign(ctx, b, c, key)
	case PolicyOwn:
		if !sameAuthor(c.Author, user) {
			return nil
		}
		return Sign(ctx, b, c, key)
	default:
		return nil
	}
}

func sameAuthor(a, b object.Signature) bool {
	return a.Name == b.Name && a.Email == b.Email
}
