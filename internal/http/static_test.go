package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

const testCacheControl = "public, max-age=3600"

func newSiteFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/index.html":        "<html>app</html>",
		"/about.html":        "<html>about</html>",
		"/css/site.css":      "body{margin:0}",
		"/docs/index.html":   "<html>docs</html>",
		"/.env":              "SECRET=1",
		"/.well-known/x.txt": "hidden",
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	return fs
}

func TestStaticHandler_Resolution(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"root serves index", http.MethodGet, "/", 200, "<html>app</html>"},
		{"exact file", http.MethodGet, "/css/site.css", 200, "body{margin:0}"},
		{"html extension fallback", http.MethodGet, "/about", 200, "<html>about</html>"},
		{"directory index", http.MethodGet, "/docs", 200, "<html>docs</html>"},
		{"directory index trailing slash", http.MethodGet, "/docs/", 200, "<html>docs</html>"},
		{"client route gets entry document", http.MethodGet, "/radar/atlanta", 200, "<html>app</html>"},
		{"missing asset gets entry document", http.MethodGet, "/img/missing.png", 200, "<html>app</html>"},
		{"unknown api path gets entry document", http.MethodGet, "/api/unknown", 200, "<html>app</html>"},
		{"dotfile hidden", http.MethodGet, "/.env", 200, "<html>app</html>"},
		{"dot directory hidden", http.MethodGet, "/.well-known/x.txt", 200, "<html>app</html>"},
		{"traversal stays inside root", http.MethodGet, "/../../etc/passwd", 200, "<html>app</html>"},
		{"head fallback", http.MethodHead, "/somewhere", 200, ""},
		{"post is not found", http.MethodPost, "/somewhere", 404, ""},
		{"delete file is not found", http.MethodDelete, "/about", 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStaticHandler(newSiteFs(t), StaticConfig{EntryDocument: "index.html", CacheControl: testCacheControl})
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/", nil)
			req.URL.Path = tt.path

			h.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantCode == 200 && w.Header().Get("Cache-Control") != testCacheControl {
				t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestStaticHandler_ContentType(t *testing.T) {
	h := NewStaticHandler(newSiteFs(t), StaticConfig{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/css/site.css", nil))
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("css Content-Type = %q", ct)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/deep/link", nil))
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("fallback Content-Type = %q", ct)
	}
}

func TestStaticHandler_MissingEntryDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/app.js", []byte("x"), 0644)
	h := NewStaticHandler(fs, StaticConfig{EntryDocument: "index.html"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStaticHandler_ConditionalAndRange(t *testing.T) {
	h := NewStaticHandler(newSiteFs(t), StaticConfig{CacheControl: testCacheControl})

	req := httptest.NewRequest(http.MethodGet, "/css/site.css", nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/css/site.css", nil)
	req.Header.Set("Range", "bytes=0-3")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusPartialContent || w.Body.String() != "body" {
		t.Errorf("range = %d %q, want 206 \"body\"", w.Code, w.Body.String())
	}
}

func TestNewDirFs_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	if err := afero.WriteFile(afero.NewOsFs(), dir+"/index.html", []byte("disk"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fs := NewDirFs(dir)

	data, err := afero.ReadFile(fs, "/index.html")
	if err != nil || string(data) != "disk" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	if err := afero.WriteFile(fs, "/new.html", []byte("x"), 0644); err == nil {
		t.Error("write through NewDirFs should fail")
	}
}
