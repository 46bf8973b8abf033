//go:build !embed

package web

import "io/fs"

// embeddedFrontend is nil unless the binary is built with -tags=embed
func embeddedFrontend() (fs.FS, error) {
	return nil, nil
}
