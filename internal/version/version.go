// Copyright (c) Microsoft Corporation. All rights reserved.

package version

var (
	// Set at build time via -ldflags.
	version        = "dev"
	commitHash     = ""
	buildTimestamp = ""
)

type Info struct {
	Version        string `json:"version"`
	CommitHash     string `json:"commitHash,omitempty"`
	BuildTimestamp string `json:"buildTimestamp,omitempty"`
}

func Version() Info {
	return Info{
		Version:        version,
		CommitHash:     commitHash,
		BuildTimestamp: buildTimestamp,
	}
}
