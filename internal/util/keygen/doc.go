// Package keygen generates SSH key pairs.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public) together with the SHA256 fingerprint, ready to be uploaded
// as cloud SSH keys.
package keygen
