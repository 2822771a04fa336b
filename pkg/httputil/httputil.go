// Package httputil implements HTTP utilities.
package httputil

import (
	"net/url"
)

// IsURL returns true if the path is an http(s) endpoint.
func IsURL(p string) bool {
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
