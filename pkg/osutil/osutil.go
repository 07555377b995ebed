// Copyright (c) Microsoft Corporation. All rights reserved.

package osutil

import "runtime"

// CRLF returns the line separator appropriate for the current platform.
func CRLF() []byte {
	if runtime.GOOS == "windows" {
		return []byte{'\r', '\n'}
	}
	return []byte{'\n'}
}
