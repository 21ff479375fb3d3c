// Package auth implements the account lifecycle core: registration, email
// verification, credential login, session token issuance and invalidation,
// and avatar reference updates.
//
// Lifecycle invariants:
//   - An unverified user always carries a non-empty verification token; the
//     token is cleared in the same statement that flips the verified flag, so
//     verification is single-use by construction.
//   - At most one session token is outstanding per user. Login overwrites the
//     stored token (last writer wins) and logout clears it; a JWT that still
//     validates cryptographically but no longer matches the stored copy is
//     treated as revoked.
//
// The Accounts manager orchestrates the stateless collaborators (password
// hashing, token service, mailer, avatar pipeline) around the Users
// repository. The users.email unique index is the registration race
// guarantee; the application-level lookup only produces a friendlier error.
package auth
