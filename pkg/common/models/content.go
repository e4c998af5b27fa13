package models

import "github.com/Fl0rencess720/inkwell/pkg/content"

// CreatePostReq 对应 POST /posts 的请求体
type CreatePostReq struct {
	Name string `json:"name" binding:"required" jsonschema:"Name of the new post, also its slug"`
}

// RenamePostReq 对应 PATCH /posts/:slug 的请求体
type RenamePostReq struct {
	Name string `json:"name" binding:"required" jsonschema:"New name of the post"`
}

// ListPostsResp 文章列表，按最近修改时间倒序
type ListPostsResp struct {
	Posts []content.PostSummary `json:"posts" jsonschema:"Posts ordered by most recent modification first"`
}

// GetTreeResp 文章目录树
type GetTreeResp struct {
	Slug  string         `json:"slug" jsonschema:"Post slug"`
	Nodes []content.Node `json:"nodes" jsonschema:"Directories first, then files, case-insensitive by name"`
}

// CreateFolderReq 对应 POST /posts/:slug/folders 的请求体
type CreateFolderReq struct {
	Parent string `json:"parent" jsonschema:"Parent directory relative to the post root, empty for the root"`
	Name   string `json:"name" binding:"required" jsonschema:"Folder name without separators"`
}

// MoveEntryReq 对应 POST /posts/:slug/move 的请求体
type MoveEntryReq struct {
	Source string `json:"source" binding:"required" jsonschema:"Existing entry path relative to the post root"`
	Target string `json:"target" binding:"required" jsonschema:"New entry path relative to the post root"`
}

// GetFileReq 对应 GET /posts/:slug/file 的查询参数
type GetFileReq struct {
	Path     string `form:"path" json:"path" binding:"required" jsonschema:"File path relative to the post root"`
	Encoding string `form:"encoding" json:"encoding,omitempty" jsonschema:"Content encoding, supported values: utf8, utf-8, base64. Defaults to utf8"`
}

// GetFileResp 读取文件接口响应体
type GetFileResp struct {
	Path       string `json:"path" jsonschema:"File path relative to the post root"`
	Size       int64  `json:"size" jsonschema:"File size in bytes"`
	ModifiedAt string `json:"modifiedAt" jsonschema:"Last modified time in RFC3339 format"`
	Encoding   string `json:"encoding" jsonschema:"Encoding of content"`
	Content    string `json:"content" jsonschema:"File content in the requested encoding"`
}

// WriteFileReq 对应 PUT /posts/:slug/file 的请求体
type WriteFileReq struct {
	Path    string `json:"path" binding:"required" jsonschema:"File path relative to the post root"`
	Content  string `json:"content" jsonschema:"Full file content"`
	Encoding string `json:"encoding,omitempty" jsonschema:"Input content encoding, supported values: utf8, utf-8, base64. Defaults to utf8"`
}

// UploadResp 上传文件接口响应体
type UploadResp struct {
	content.Outcome
	FileName string `json:"fileName" jsonschema:"Original file name sent by the client"`
	Size     int64  `json:"size" jsonschema:"Uploaded size in bytes"`
}

// DeployReq 对应 POST /deploy 的请求体
type DeployReq struct {
	Message string `json:"message" binding:"required" jsonschema:"Commit message for the deploy"`
}
