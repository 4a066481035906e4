package core

import (
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// Branch is set at build time with -ldflags "-X pixel-pump/internal/core.Branch=...".
var Branch = "unknown"

// VersionInfo returns "tag,branch,commit,timestamp".
func (s *PumpSystem) VersionInfo() string {
	timestamp := "unknown"
	if !versioninfo.LastCommit.IsZero() {
		timestamp = versioninfo.LastCommit.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{versioninfo.Version, Branch, versioninfo.Revision, timestamp}, ",")
}
