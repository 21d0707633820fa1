// Package apperr holds the sentinel errors shared across storysync packages.
package apperr

import "errors"

var (
	// ErrAuthentication is returned when the board rejects the configured credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrRemoteAPI covers every other failure reported by the board API.
	ErrRemoteAPI = errors.New("remote api error")
	// ErrParse is returned for story files missing required frontmatter.
	ErrParse = errors.New("parse error")
	// ErrConfiguration is returned when a required setting is missing at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnsupportedStatus is returned when a status has no board option.
	ErrUnsupportedStatus = errors.New("unsupported status")

	ErrNotFound = errors.New("not found")
)
