//go:build embed

package web

import (
	"embed"
	"io/fs"
)

//go:embed frontend/dist
var frontendFiles embed.FS

func embeddedFrontend() (fs.FS, error) {
	return fs.Sub(frontendFiles, "frontend/dist")
}
