/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package azure

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/microsoft/nodeattach/internal/attach"
)

const ftpPublishMethod = "FTP"

// SettingsDocument is a parsed publish-settings document
// (publishData/publishProfile elements with credential attributes).
type SettingsDocument struct {
	XMLName  xml.Name            `xml:"publishData"`
	Profiles []publishProfileXML `xml:"publishProfile"`
}

type publishProfileXML struct {
	ProfileName   string `xml:"profileName,attr"`
	PublishMethod string `xml:"publishMethod,attr"`
	PublishURL    string `xml:"publishUrl,attr"`
	UserName      string `xml:"userName,attr"`
	UserPWD       string `xml:"userPWD,attr"`
}

// ParsePublishSettings parses the raw bytes of a publish-settings document.
func ParsePublishSettings(data []byte) (*SettingsDocument, error) {
	var doc SettingsDocument
	if unmarshalErr := xml.Unmarshal(data, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: failed to parse publish settings: %v", attach.ErrMalformedDocument, unmarshalErr)
	}
	return &doc, nil
}

// LoadPublishSettings reads and parses a publish-settings file downloaded
// ahead of time, bypassing the management endpoint.
func LoadPublishSettings(path string) (*SettingsDocument, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read publish settings file '%s': %v", attach.ErrMalformedDocument, path, readErr)
	}
	return ParsePublishSettings(data)
}

// FTPProfile returns the first profile whose publish method is FTP.
// The profile must carry a non-empty publish URL, user name and password;
// a missing profile or field is a malformed-document failure, reported
// before any further network activity.
func (d *SettingsDocument) FTPProfile() (attach.PublishProfile, error) {
	for _, profile := range d.Profiles {
		if profile.PublishMethod != ftpPublishMethod {
			continue
		}

		if profile.PublishURL == "" || profile.UserName == "" || profile.UserPWD == "" {
			return attach.PublishProfile{}, fmt.Errorf(
				"%w: FTP publish profile is missing a publishUrl, userName or userPWD attribute",
				attach.ErrMalformedDocument)
		}

		return attach.PublishProfile{
			PublishURL: profile.PublishURL,
			UserName:   profile.UserName,
			Password:   profile.UserPWD,
		}, nil
	}

	return attach.PublishProfile{}, fmt.Errorf("%w: publish settings contain no FTP publish profile", attach.ErrMalformedDocument)
}
