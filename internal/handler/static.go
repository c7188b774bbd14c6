package handler

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/6ixhq/creator/internal/middleware"
	"github.com/6ixhq/creator/internal/model"
)

// StaticHandler はビルド済みフロントエンドを配信する。
// 存在しないページパスはindex.htmlを返し、クライアント側のルーティングに任せる。
type StaticHandler struct {
	files fs.FS
	fs    http.Handler
}

// NewStaticHandler はdir配下を配信するStaticHandlerを生成する。
func NewStaticHandler(dir string) *StaticHandler {
	files := os.DirFS(dir)
	return &StaticHandler{
		files: files,
		fs:    http.FileServer(http.FS(files)),
	}
}

// ServeHTTP はルーターに一致しなかったリクエストを処理する。
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if middleware.IsAPI(r.URL.Path) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name != "" && h.isFile(name) {
		h.fs.ServeHTTP(w, r)
		return
	}

	// アセットが見つからない場合はindex.htmlで代替しない
	if middleware.IsStaticAsset(r.URL.Path) {
		http.NotFound(w, r)
		return
	}

	if !h.isFile("index.html") {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, h.files, "index.html")
}

func (h *StaticHandler) isFile(name string) bool {
	info, err := fs.Stat(h.files, name)
	return err == nil && !info.IsDir()
}
