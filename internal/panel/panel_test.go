package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesRoot(t *testing.T) {
	w := get(t, Handler(""), "/")

	if w.Code != http.StatusOK {
		t.Fatalf("GET /: got status %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "widget.js", "Loading devices"} {
		if !strings.Contains(body, want) {
			t.Errorf("GET /: body missing %q", want)
		}
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-cache") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestHandlerServesAssets(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/widget.js", "devices.updated"},
		{"/widget.css", ".widget"},
	}
	h := Handler("")
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("got status %d, want 200", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestHandlerFallback(t *testing.T) {
	h := Handler("")
	for _, path := range []string{"/nonexistent", "/some/deep/route"} {
		w := get(t, h, path)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
			t.Errorf("GET %s: fallback didn't serve index.html", path)
		}
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	index := `<!DOCTYPE html><html><body>filesystem widget</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "widget.js"), []byte("// local"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := Handler(dir)

	if w := get(t, h, "/"); !strings.Contains(w.Body.String(), "filesystem widget") {
		t.Errorf("GET /: expected filesystem content, got %q", w.Body.String())
	}
	if w := get(t, h, "/widget.js"); w.Body.String() != "// local" {
		t.Errorf("GET /widget.js = %q", w.Body.String())
	}
	if w := get(t, h, "/deep/route"); !strings.Contains(w.Body.String(), "filesystem widget") {
		t.Error("filesystem fallback didn't serve filesystem index.html")
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	w := get(t, Handler("/nonexistent/dir/that/does/not/exist"), "/")

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "widget.js") {
		t.Error("didn't fall back to embedded index.html")
	}
}
