package http

import (
	"bytes"
	"embed"
	"io/fs"
	stdhttp "net/http"
	"strings"
	"time"
)

//go:embed static/favicon.ico
var favicon []byte

//go:embed static/assets
var assets embed.FS

func faviconHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if len(favicon) == 0 {
		w.WriteHeader(stdhttp.StatusNotFound)
		return
	}

	reader := bytes.NewReader(favicon)
	w.Header().Set("Content-Type", "image/x-icon")
	stdhttp.ServeContent(w, r, "favicon.ico", time.Time{}, reader)
}

// staticHandler serves the embedded stylesheet and scripts under /static/.
func staticHandler() stdhttp.Handler {
	sub, err := fs.Sub(assets, "static/assets")
	if err != nil {
		panic(err)
	}
	files := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.FS(sub)))
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			stdhttp.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}

// uploadsHandler serves images stored by the local bucket.
func uploadsHandler(dir string) stdhttp.HandlerFunc {
	files := stdhttp.StripPrefix("/uploads/", stdhttp.FileServer(stdhttp.Dir(dir)))
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			stdhttp.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	}
}
