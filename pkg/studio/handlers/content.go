package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Fl0rencess720/inkwell/pkg/common/models"
	"github.com/Fl0rencess720/inkwell/pkg/common/observability"
	"github.com/Fl0rencess720/inkwell/pkg/content"
	"github.com/Fl0rencess720/inkwell/pkg/studio/pkgs/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultFileEncoding = "utf8"
	base64FileEncoding  = "base64"

	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

type postStore interface {
	ListPosts(ctx context.Context) ([]content.PostSummary, error)
	Post(ctx context.Context, slug string) (content.PostSummary, error)
	CreatePost(ctx context.Context, name string) (content.PostSummary, error)
	RenamePost(ctx context.Context, from, to string) (content.PostSummary, error)
	DeletePost(ctx context.Context, slug string) error
	Deploy(ctx context.Context, message string) error

	Tree(ctx context.Context, slug string) ([]content.Node, error)
	CreateDirectory(ctx context.Context, slug, parent, name string) (content.Outcome, error)
	Rename(ctx context.Context, slug, source, target string) (content.Outcome, error)
	Remove(ctx context.Context, slug, target string) (content.Outcome, error)
	ReadFile(ctx context.Context, slug, path string) (content.FileContent, error)
	WriteFile(ctx context.Context, slug, path string, data []byte) (content.Outcome, error)
	Ingest(ctx context.Context, slug, targetDir, fileName string, size int64, body io.Reader) (content.Outcome, error)
	MaxUploadBytes() int64
}

type ContentHandler struct {
	store postStore
}

var _ postStore = (*content.Workspace)(nil)

func InitContentApi(group *gin.RouterGroup, store postStore) {
	h := &ContentHandler{store: store}

	posts := group.Group("/posts")
	{
		posts.GET("", h.ListPosts)
		posts.POST("", h.CreatePost)
		posts.GET("/:slug", h.GetPost)
		posts.PATCH("/:slug", h.RenamePost)
		posts.DELETE("/:slug", h.DeletePost)

		posts.GET("/:slug/tree", h.GetTree)
		posts.POST("/:slug/folders", h.CreateFolder)
		posts.POST("/:slug/move", h.MoveEntry)
		posts.DELETE("/:slug/entries", h.RemoveEntry)
		posts.GET("/:slug/file", h.GetFile)
		posts.PUT("/:slug/file", h.WriteFile)
		posts.POST("/:slug/upload", h.Upload)
	}

	group.POST("/deploy", h.Deploy)
}

// ListPosts 列出全部文章，最近修改的在前
func (h *ContentHandler) ListPosts(c *gin.Context) {
	posts, err := h.store.ListPosts(c.Request.Context())
	if err != nil {
		h.fail(c, "list posts", err)
		return
	}
	content.SortByRecency(posts)
	if posts == nil {
		posts = []content.PostSummary{}
	}
	response.SuccessResponse(c, models.ListPostsResp{Posts: posts})
}

func (h *ContentHandler) CreatePost(c *gin.Context) {
	var req models.CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	summary, err := h.store.CreatePost(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, "create post", err)
		return
	}
	response.SuccessResponse(c, summary)
}

func (h *ContentHandler) GetPost(c *gin.Context) {
	summary, err := h.store.Post(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, "get post", err)
		return
	}
	response.SuccessResponse(c, summary)
}

func (h *ContentHandler) RenamePost(c *gin.Context) {
	var req models.RenamePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	summary, err := h.store.RenamePost(c.Request.Context(), c.Param("slug"), req.Name)
	if err != nil {
		h.fail(c, "rename post", err)
		return
	}
	response.SuccessResponse(c, summary)
}

func (h *ContentHandler) DeletePost(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.store.DeletePost(c.Request.Context(), slug); err != nil {
		h.fail(c, "delete post", err)
		return
	}
	response.SuccessResponse(c, gin.H{"slug": slug})
}

// GetTree 返回文章目录树，目录在前，名称不区分大小写排序
func (h *ContentHandler) GetTree(c *gin.Context) {
	slug := c.Param("slug")
	nodes, err := h.store.Tree(c.Request.Context(), slug)
	if err != nil {
		h.fail(c, "get tree", err)
		return
	}
	if nodes == nil {
		nodes = []content.Node{}
	}
	response.SuccessResponse(c, models.GetTreeResp{Slug: slug, Nodes: nodes})
}

func (h *ContentHandler) CreateFolder(c *gin.Context) {
	var req models.CreateFolderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	out, err := h.store.CreateDirectory(c.Request.Context(), c.Param("slug"), req.Parent, req.Name)
	if err != nil {
		h.fail(c, "create folder", err)
		return
	}
	response.SuccessResponse(c, out)
}

func (h *ContentHandler) MoveEntry(c *gin.Context) {
	var req models.MoveEntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	out, err := h.store.Rename(c.Request.Context(), c.Param("slug"), req.Source, req.Target)
	if err != nil {
		h.fail(c, "move entry", err)
		return
	}
	response.SuccessResponse(c, out)
}

func (h *ContentHandler) RemoveEntry(c *gin.Context) {
	target := c.Query("path")
	if strings.TrimSpace(target) == "" {
		response.ErrorResponse(c, response.FormError)
		return
	}

	out, err := h.store.Remove(c.Request.Context(), c.Param("slug"), target)
	if err != nil {
		h.fail(c, "remove entry", err)
		return
	}
	response.SuccessResponse(c, out)
}

// GetFile 读取文件内容，支持 utf8/base64 编码返回
func (h *ContentHandler) GetFile(c *gin.Context) {
	var req models.GetFileReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}
	encoding, err := parseEncoding(req.Encoding)
	if err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	fc, err := h.store.ReadFile(c.Request.Context(), c.Param("slug"), req.Path)
	if err != nil {
		h.fail(c, "read file", err)
		return
	}

	text := ""
	if encoding == defaultFileEncoding {
		if !utf8.Valid(fc.Content) {
			response.ErrorDetailResponse(c, response.FormError, "file is not valid UTF-8, request base64 encoding")
			return
		}
		text = string(fc.Content)
	} else {
		text = base64.StdEncoding.EncodeToString(fc.Content)
	}

	response.SuccessResponse(c, models.GetFileResp{
		Path:       fc.Path,
		Size:       fc.Size,
		ModifiedAt: fc.ModifiedAt.Format(time.RFC3339),
		Encoding:   encoding,
		Content:    text,
	})
}

func (h *ContentHandler) WriteFile(c *gin.Context) {
	var req models.WriteFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}
	encoding, err := parseEncoding(req.Encoding)
	if err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}
	data, err := decodeContent(req.Content, encoding)
	if err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	out, err := h.store.WriteFile(c.Request.Context(), c.Param("slug"), req.Path, data)
	if err != nil {
		h.fail(c, "write file", err)
		return
	}
	response.SuccessResponse(c, out)
}

// Upload 接收 multipart 上传，写入文章内 dir 目录，同名文件被覆盖
func (h *ContentHandler) Upload(c *gin.Context) {
	limit := h.store.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.ContentError(c, &content.Error{
				Kind:   content.KindPayloadTooLarge,
				Op:     "upload",
				Detail: "payload exceeds upload limit",
			})
			return
		}
		response.ErrorResponse(c, response.FormError)
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}
	defer closeQuietly(file)

	dir := c.Request.FormValue("dir")
	out, err := h.store.Ingest(c.Request.Context(), c.Param("slug"), dir, header.Filename, header.Size, file)
	if err != nil {
		h.fail(c, "upload", err)
		return
	}

	response.SuccessResponse(c, models.UploadResp{
		Outcome:  out,
		FileName: header.Filename,
		Size:     header.Size,
	})
}

// Deploy 提交并推送整个站点
func (h *ContentHandler) Deploy(c *gin.Context) {
	var req models.DeployReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.FormError)
		return
	}

	if err := h.store.Deploy(c.Request.Context(), req.Message); err != nil {
		h.fail(c, "deploy", err)
		return
	}
	response.SuccessResponse(c, gin.H{"deployed": true})
}

func (h *ContentHandler) fail(c *gin.Context, action string, err error) {
	logger := observability.Logger(c.Request.Context())
	if content.KindOf(err) == content.KindInternal {
		logger.Error(action+" failed", zap.String("slug", c.Param("slug")), zap.Error(err))
	} else {
		logger.Info(action+" rejected", zap.String("slug", c.Param("slug")), zap.Error(err))
	}
	response.ContentError(c, err)
}

func parseEncoding(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "utf8", "utf-8":
		return defaultFileEncoding, nil
	case base64FileEncoding:
		return base64FileEncoding, nil
	default:
		return "", errors.New("unsupported encoding")
	}
}

func decodeContent(text, encoding string) ([]byte, error) {
	if encoding == base64FileEncoding {
		return base64.StdEncoding.DecodeString(text)
	}
	return []byte(text), nil
}

func closeQuietly(f multipart.File) {
	if err := f.Close(); err != nil {
		zap.L().Debug("close upload part failed", zap.Error(err))
	}
}
