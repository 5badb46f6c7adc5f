// Package credential hashes and verifies account passwords.
//
// Two record formats are understood:
//   - salted SHA-256, "base64(salt):base64(sha256(base64(salt) || password))". This is the
//     format of existing account rows. A single SHA-256 round is fast to brute force, so
//     this scheme is kept for record compatibility, not for strength.
//   - Argon2id in PHC form, "$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>".
//
// Digest comparison is constant time in both schemes. Malformed records verify as false.
package credential
