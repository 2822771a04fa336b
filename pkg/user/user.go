// Package user identifies the invoking user, recorded as metadata on
// uploaded benchmark artifacts.
package user

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
)

// Get returns the invoking user and host identity as one tag string.
// It never fails; without an OS user entry it falls back to $USER.
func Get() string {
	u, err := user.Current()
	if err != nil {
		return fmt.Sprintf("user=%s", os.Getenv("USER"))
	}
	h, err := os.Hostname()
	if err != nil {
		h = os.Getenv("HOSTNAME")
	}
	return fmt.Sprintf("name=%s,user=%s,home=%s,hostname=%s,os=%s,arch=%s",
		u.Name,
		u.Username,
		u.HomeDir,
		h,
		runtime.GOOS,
		runtime.GOARCH,
	)
}
