// Package webui serves the built browser client from disk.
package webui

import (
	"fmt"
	"net/http"
	"os"
)

// Handler serves files under dir, answering directory requests with their
// index.html.
func Handler(dir string) (http.Handler, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("static dir %s is not a directory", dir)
	}
	return http.FileServer(http.Dir(dir)), nil
}
