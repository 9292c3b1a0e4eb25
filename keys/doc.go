// Package keys holds the signing keys used to publish tree roots.
//
// Seeds are 32 bytes. A named root seed lives in a KeyStore; role seeds are
// derived from it deterministically. The same seed drives either an Ed25519
// or a Dilithium3 signer.
package keys
