/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package webconfig

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/jlaffaye/ftp"

	"github.com/microsoft/nodeattach/internal/attach"
)

const (
	ftpScheme      = "ftp"
	ftpDefaultPort = "21"

	defaultDialTimeout = 15 * time.Second
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// DialTimeout bounds the FTP control connection establishment.
	// Defaults to 15 seconds.
	DialTimeout time.Duration

	// Logger for fetch operations.
	Logger logr.Logger
}

// Fetcher retrieves the site configuration file over FTP using the
// credentials from a publish profile. It implements attach.ConfigFetcher.
type Fetcher struct {
	dialTimeout time.Duration
	log         logr.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Fetcher{
		dialTimeout: dialTimeout,
		log:         log,
	}
}

// FetchSiteConfig downloads and parses the web.config of the site the
// publish profile points at.
func (f *Fetcher) FetchSiteConfig(ctx context.Context, profile attach.PublishProfile) (attach.SiteConfiguration, error) {
	serverAddr, filePath, locationErr := resolveConfigLocation(profile.PublishURL)
	if locationErr != nil {
		return nil, locationErr
	}

	f.log.V(1).Info("Fetching site configuration over FTP",
		"server", serverAddr,
		"path", filePath,
		"user", profile.UserName)

	conn, dialErr := ftp.Dial(serverAddr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(f.dialTimeout),
	)
	if dialErr != nil {
		return nil, fmt.Errorf("%w: failed to connect to FTP server %s: %v", attach.ErrNetworkFailure, serverAddr, dialErr)
	}
	defer func() {
		_ = conn.Quit()
	}()

	if loginErr := conn.Login(profile.UserName, profile.Password); loginErr != nil {
		return nil, fmt.Errorf("%w: FTP login to %s failed: %v", attach.ErrNetworkFailure, serverAddr, loginErr)
	}

	response, retrErr := conn.Retr(filePath)
	if retrErr != nil {
		return nil, fmt.Errorf("%w: failed to retrieve %s from %s: %v", attach.ErrNetworkFailure, filePath, serverAddr, retrErr)
	}
	defer response.Close()

	data, readErr := io.ReadAll(response)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read %s from %s: %v", attach.ErrNetworkFailure, filePath, serverAddr, readErr)
	}

	return Parse(data)
}

// resolveConfigLocation turns a publish URL into the FTP server address and
// the full path of the site configuration file. The publish URL path is
// normalized to end with a path separator before the fixed file name is
// appended, so "ftp://example/" resolves to "/web.config" on host "example".
func resolveConfigLocation(publishURL string) (serverAddr string, filePath string, err error) {
	if publishURL == "" {
		return "", "", fmt.Errorf("%w: publish profile has an empty publish URL", attach.ErrMalformedDocument)
	}

	// Publish profiles frequently omit the scheme.
	if !strings.Contains(publishURL, "://") {
		publishURL = ftpScheme + "://" + publishURL
	}

	parsed, parseErr := url.Parse(publishURL)
	if parseErr != nil {
		return "", "", fmt.Errorf("%w: invalid publish URL '%s': %v", attach.ErrMalformedDocument, publishURL, parseErr)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("%w: publish URL '%s' has no host", attach.ErrMalformedDocument, publishURL)
	}

	serverAddr = parsed.Host
	if parsed.Port() == "" {
		serverAddr = serverAddr + ":" + ftpDefaultPort
	}

	filePath = parsed.Path
	if !strings.HasSuffix(filePath, "/") {
		filePath = filePath + "/"
	}
	filePath = filePath + SiteConfigFileName

	return serverAddr, filePath, nil
}
