package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// signingKeyBits is the RSA modulus size for the generated platform signing
// key. 2048 bits is the minimum the platform accepts for RS256 assertions
// and keeps generation fast on operator laptops.
const signingKeyBits = 2048

// GenerateSigningKeyPEM produces a fresh RSA key pair for service-account
// authentication against the imagery platform. The private half is stored
// in SSM and later consumed by the token source that signs RS256 assertions;
// the public half is returned so the bootstrap flow can display it for
// registration with the platform account.
//
// The private key is encoded as a PKCS#8 "PRIVATE KEY" PEM block, which is
// the format the JWT library parses. The public key is encoded as a PKIX
// "PUBLIC KEY" PEM block.
//
// The private key is never logged or displayed to the operator; only the
// public key leaves this process in readable form.
func GenerateSigningKeyPEM() (privatePEM, publicPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("generating signing key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("encoding private key: %w", err)
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privDER,
	}))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("encoding public key: %w", err)
	}
	publicPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	}))

	return privatePEM, publicPEM, nil
}
