// Package version defines tipc-bench version.
package version

import (
	"encoding/json"
	"fmt"
	"time"
)

var (
	// GitCommit is the git commit on build.
	GitCommit = ""
	// ReleaseVersion is the release version.
	ReleaseVersion = ""
	// BuildTime is the build timestamp.
	BuildTime = ""
)

func init() {
	now := time.Now()
	if ReleaseVersion == "" {
		ReleaseVersion = fmt.Sprintf(
			"%d%02d%02d%02d%02d",
			now.Year(),
			int(now.Month()),
			now.Day(),
			now.Hour(),
			now.Minute(),
		)
	}
	if BuildTime == "" {
		BuildTime = now.String()
	}
}

// Version returns the version information as a JSON string.
func Version() string {
	d, err := json.Marshal(map[string]string{
		"release-version": ReleaseVersion,
		"git-commit":      GitCommit,
		"build-time":      BuildTime,
	})
	if err != nil {
		return err.Error()
	}
	return string(d)
}
