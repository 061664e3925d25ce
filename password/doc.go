// Package password hashes account passwords with argon2id and verifies both
// argon2id PHC strings and the salted MD5 digests carried by imported
// accounts.
//
// [Hasher.Verify] reports whether a stored hash should be replaced so the
// login flow can upgrade legacy or under-costed hashes in place.
package password
