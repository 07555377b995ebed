/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package azure

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/microsoft/nodeattach/internal/attach"
)

const (
	NODEATTACH_MANAGEMENT_CERTIFICATE = "NODEATTACH_MANAGEMENT_CERTIFICATE" // Path to a PEM file with the management certificate and private key
	NODEATTACH_MANAGEMENT_TOKEN       = "NODEATTACH_MANAGEMENT_TOKEN"       // Bearer token for the management endpoint
)

// Credential authenticates requests to the subscription management endpoint.
// Certificate credentials are presented at the transport level; token
// credentials are applied per request.
type Credential interface {
	// Apply adds the credential to an outgoing management request.
	Apply(req *http.Request) error

	// TLSClientConfig returns the TLS configuration needed to present the
	// credential during the handshake, or nil when none is required.
	TLSClientConfig() *tls.Config
}

// CertificateCredential authenticates with an X.509 management certificate
// presented as a TLS client certificate.
type CertificateCredential struct {
	certificate tls.Certificate
}

func NewCertificateCredential(certificate tls.Certificate) *CertificateCredential {
	return &CertificateCredential{certificate: certificate}
}

// LoadCertificateCredential reads a PEM file containing both the management
// certificate and its private key.
func LoadCertificateCredential(path string) (*CertificateCredential, error) {
	certificate, loadErr := tls.LoadX509KeyPair(path, path)
	if loadErr != nil {
		return nil, fmt.Errorf("%w: failed to load management certificate from '%s': %v",
			attach.ErrAuthenticationUnavailable, path, loadErr)
	}
	return NewCertificateCredential(certificate), nil
}

func (c *CertificateCredential) Apply(req *http.Request) error {
	// The certificate is presented during the TLS handshake; nothing to add here.
	return nil
}

func (c *CertificateCredential) TLSClientConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.certificate},
	}
}

// TokenCredential authenticates with a bearer token.
type TokenCredential struct {
	token string
}

func NewTokenCredential(token string) *TokenCredential {
	return &TokenCredential{token: token}
}

func (c *TokenCredential) Apply(req *http.Request) error {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	return nil
}

func (c *TokenCredential) TLSClientConfig() *tls.Config {
	return nil
}

// CredentialFromEnvironment builds a credential from the ambient environment,
// preferring the management certificate over a bearer token. It returns an
// error wrapping attach.ErrAuthenticationUnavailable when neither is set.
func CredentialFromEnvironment() (Credential, error) {
	if certPath, found := os.LookupEnv(NODEATTACH_MANAGEMENT_CERTIFICATE); found && certPath != "" {
		return LoadCertificateCredential(certPath)
	}

	if token, found := os.LookupEnv(NODEATTACH_MANAGEMENT_TOKEN); found && token != "" {
		return NewTokenCredential(token), nil
	}

	return nil, fmt.Errorf("%w: neither %s nor %s is set",
		attach.ErrAuthenticationUnavailable, NODEATTACH_MANAGEMENT_CERTIFICATE, NODEATTACH_MANAGEMENT_TOKEN)
}
