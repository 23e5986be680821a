// Package principal carries the authenticated user identifier through
// context.Context. Authentication happens upstream; this package only reads
// the identity that was established there.
//
//	ctx = principal.WithUserID(ctx, "user-123")
//	id, err := principal.Resolve(ctx, "") // "user-123"
package principal
