// Package password implements credential hashing and verification with
// Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Parameters travel inside the hash, so verification works against hashes
// produced under older settings. [Hasher.NeedsRehash] reports when a stored
// hash is weaker than the current configuration; callers re-hash on the next
// successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy and
// storage belong to the Engine and its credential store.
package password
