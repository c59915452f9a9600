package panel

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

//go:embed web
var embedded embed.FS

// assets returns the directory to serve: dir when it exists, else the
// embedded copy.
func assets(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	sub, err := fs.Sub(embedded, "web")
	if err != nil {
		// Only reachable if the embed directive is broken.
		panic("panel: embedded assets missing: " + err.Error())
	}
	return sub
}

// Handler serves the widget from dir, or from the embedded assets when dir
// is empty or missing. Requests for files that do not exist get index.html.
func Handler(dir string) http.Handler {
	root := assets(dir)
	files := http.FileServerFS(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" && !exists(root, name) {
			r = r.Clone(r.Context())
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}

func exists(root fs.FS, name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(root, name)
	return err == nil && !info.IsDir()
}
