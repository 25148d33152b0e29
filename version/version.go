// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version provides the wallet's semantic version.
package version

import (
	"fmt"
	"strings"
)

// semverAlphabet is an alphabet of all characters allowed in semver prerelease
// or build metadata identifiers, and the . separator.
const semverAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

// Constants defining the application version number.
const (
	Major = 0
	Minor = 9
	Patch = 2
)

// Integer is an integer encoding of the major.minor.patch version.
const Integer = 1000000*Major + 10000*Minor + 100*Patch

// PreRelease contains the prerelease name of the application.  It is a
// variable so it can be modified at link time.  It must only contain
// characters from the semantic version alphabet.
var PreRelease = "pre"

// BuildMetadata defines additional build metadata.  It is modified at link
// time for official releases.  It must only contain characters from the
// semantic version alphabet.
var BuildMetadata = ""

// String returns the application version as a properly formed string per the
// semantic versioning 2.0.0 spec (https://semver.org/).
func String() string {
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)

	preRelease := normalizeVerString(PreRelease)
	if preRelease != "" {
		version = version + "-" + preRelease
	}
	buildMetadata := normalizeVerString(BuildMetadata)
	if buildMetadata != "" {
		version = version + "+" + buildMetadata
	}
	return version
}

// normalizeVerString returns the passed string stripped of all characters
// which are not valid according to the semantic versioning guidelines.
func normalizeVerString(str string) string {
	var b strings.Builder
	for _, r := range str {
		if strings.ContainsRune(semverAlphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
