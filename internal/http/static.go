package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
)

// StaticConfig configures StaticHandler.
type StaticConfig struct {
	// EntryDocument is served for unmatched GET/HEAD paths, relative to the Fs root.
	EntryDocument string
	// CacheControl is sent on every file and fallback response.
	CacheControl string
}

// StaticHandler serves the site from an afero.Fs. Unmatched GET and HEAD requests get the
// entry document so client-side routes load the app.
type StaticHandler struct {
	fs  afero.Fs
	cfg StaticConfig
}

// NewStaticHandler returns a handler serving files from root.
func NewStaticHandler(root afero.Fs, cfg StaticConfig) *StaticHandler {
	if cfg.EntryDocument == "" {
		cfg.EntryDocument = "index.html"
	}
	return &StaticHandler{fs: root, cfg: cfg}
}

// NewDirFs returns a read-only afero.Fs rooted at dir on disk.
func NewDirFs(dir string) afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

func (s *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		observability.StaticResponsesTotal.WithLabelValues("not_found").Inc()
		http.NotFound(w, r)
		return
	}

	if name, info, ok := s.resolve(r.URL.Path); ok {
		observability.StaticResponsesTotal.WithLabelValues("file").Inc()
		s.serveFile(w, r, name, info)
		return
	}

	entry := "/" + s.cfg.EntryDocument
	info, err := s.fs.Stat(entry)
	if err != nil || info.IsDir() {
		observability.StaticResponsesTotal.WithLabelValues("not_found").Inc()
		http.NotFound(w, r)
		return
	}
	observability.StaticResponsesTotal.WithLabelValues("fallback").Inc()
	s.serveFile(w, r, entry, info)
}

// resolve maps a URL path to a regular file: exact match, directory index, then the
// path with ".html" appended when it has no extension. Dot-file segments never match.
func (s *StaticHandler) resolve(urlPath string) (string, os.FileInfo, bool) {
	name := path.Clean("/" + urlPath)
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", nil, false
		}
	}

	candidates := []string{name}
	if name == "/" {
		candidates = []string{"/index.html"}
	} else if path.Ext(name) == "" {
		candidates = append(candidates, name+".html")
	}

	for _, c := range candidates {
		info, err := s.fs.Stat(c)
		if err != nil {
			continue
		}
		if info.IsDir() {
			index := path.Join(c, "index.html")
			if ii, err := s.fs.Stat(index); err == nil && !ii.IsDir() {
				return index, ii, true
			}
			continue
		}
		return c, info, true
	}
	return "", nil, false
}

func (s *StaticHandler) serveFile(w http.ResponseWriter, r *http.Request, name string, info os.FileInfo) {
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		observability.LoggerFrom(r.Context()).Error("open static file", zap.String("file", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if s.cfg.CacheControl != "" {
		w.Header().Set("Cache-Control", s.cfg.CacheControl)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
