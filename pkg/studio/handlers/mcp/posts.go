package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/Fl0rencess720/inkwell/pkg/common/models"
	"github.com/Fl0rencess720/inkwell/pkg/common/observability"
	"github.com/Fl0rencess720/inkwell/pkg/content"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// postToolBridge 将 MCP 工具调用转发给 /api 路由，复用其校验与错误映射
type postToolBridge struct {
	router http.Handler
}

type postsListToolInput struct{}

type postTreeToolInput struct {
	Slug string `json:"slug" jsonschema:"Post slug as returned by posts_list"`
}

// postTreeToolOutput flattens the tree: the schema inferred for tool output
// cannot describe a recursive type.
type postTreeToolOutput struct {
	Slug    string          `json:"slug" jsonschema:"Post slug"`
	Entries []postTreeEntry `json:"entries" jsonschema:"Depth-first listing, directories before files at each level"`
}

type postTreeEntry struct {
	Path  string `json:"path" jsonschema:"Slash-separated path relative to the post root"`
	Type  string `json:"type" jsonschema:"file or directory"`
	Size  int64  `json:"size,omitempty" jsonschema:"File size in bytes"`
	Depth int    `json:"depth" jsonschema:"Nesting level, 0 for entries at the post root"`
}

func flattenTree(slug string, nodes []content.Node) postTreeToolOutput {
	out := postTreeToolOutput{Slug: slug, Entries: []postTreeEntry{}}
	content.Walk(nodes, func(n content.Node) {
		out.Entries = append(out.Entries, postTreeEntry{
			Path:  n.Path,
			Type:  n.Type,
			Size:  n.Size,
			Depth: strings.Count(n.Path, "/"),
		})
	})
	return out
}

type postFileGetToolInput struct {
	Slug     string `json:"slug" jsonschema:"Post slug as returned by posts_list"`
	Path     string `json:"path" jsonschema:"File path relative to the post root"`
	Encoding string `json:"encoding,omitempty" jsonschema:"Content encoding, supported values: utf8, utf-8, base64"`
}

type postFileWriteToolInput struct {
	Slug     string `json:"slug" jsonschema:"Post slug as returned by posts_list"`
	Path     string `json:"path" jsonschema:"Destination file path relative to the post root"`
	Content  string `json:"content" jsonschema:"Full file content to write"`
	Encoding string `json:"encoding,omitempty" jsonschema:"Input content encoding, supported values: utf8, utf-8, base64"`
}

func registerPostTools(server *sdkmcp.Server, api http.Handler) {
	bridge := &postToolBridge{router: api}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "posts_list",
		Description: "List posts, most recently modified first",
	}, bridge.listPosts)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "post_tree",
		Description: "List files and folders of one post",
	}, bridge.getTree)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "post_file_get",
		Description: "Read a file of a post with utf8 or base64 encoding",
	}, bridge.getFile)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "post_file_write",
		Description: "Create or replace a file of a post with utf8 or base64 encoding",
	}, bridge.writeFile)
}

func (b *postToolBridge) listPosts(ctx context.Context, _ *sdkmcp.CallToolRequest, _ postsListToolInput) (*sdkmcp.CallToolResult, models.ListPostsResp, error) {
	rec := b.invoke(ctx, http.MethodGet, "/api/posts", "", nil)
	out, err := decodeSuccessData[models.ListPostsResp](rec)
	if err != nil {
		return nil, models.ListPostsResp{}, err
	}
	return nil, out, nil
}

func (b *postToolBridge) getTree(ctx context.Context, _ *sdkmcp.CallToolRequest, in postTreeToolInput) (*sdkmcp.CallToolResult, postTreeToolOutput, error) {
	slug, err := requireSlug(in.Slug)
	if err != nil {
		return nil, postTreeToolOutput{}, err
	}

	rec := b.invoke(ctx, http.MethodGet, postPath(slug, "/tree"), "", nil)
	tree, err := decodeSuccessData[models.GetTreeResp](rec)
	if err != nil {
		return nil, postTreeToolOutput{}, err
	}
	return nil, flattenTree(tree.Slug, tree.Nodes), nil
}

func (b *postToolBridge) getFile(ctx context.Context, _ *sdkmcp.CallToolRequest, in postFileGetToolInput) (*sdkmcp.CallToolResult, models.GetFileResp, error) {
	slug, err := requireSlug(in.Slug)
	if err != nil {
		return nil, models.GetFileResp{}, err
	}

	query := url.Values{}
	query.Set("path", in.Path)
	if enc := strings.TrimSpace(in.Encoding); enc != "" {
		query.Set("encoding", enc)
	}

	rec := b.invoke(ctx, http.MethodGet, postPath(slug, "/file")+"?"+query.Encode(), "", nil)
	out, err := decodeSuccessData[models.GetFileResp](rec)
	if err != nil {
		return nil, models.GetFileResp{}, err
	}
	return nil, out, nil
}

func (b *postToolBridge) writeFile(ctx context.Context, _ *sdkmcp.CallToolRequest, in postFileWriteToolInput) (*sdkmcp.CallToolResult, content.Outcome, error) {
	slug, err := requireSlug(in.Slug)
	if err != nil {
		return nil, content.Outcome{}, err
	}

	payload, err := json.Marshal(models.WriteFileReq{
		Path:     in.Path,
		Content:  in.Content,
		Encoding: in.Encoding,
	})
	if err != nil {
		return nil, content.Outcome{}, fmt.Errorf("marshal write req: %w", err)
	}

	rec := b.invoke(ctx, http.MethodPut, postPath(slug, "/file"), "application/json", payload)
	out, err := decodeSuccessData[content.Outcome](rec)
	if err != nil {
		return nil, content.Outcome{}, err
	}
	return nil, out, nil
}

func (b *postToolBridge) invoke(ctx context.Context, method, rawPath, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, rawPath, bytes.NewReader(body)).WithContext(ctx)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(observability.RequestIDHeader, observability.RequestIDFromContext(ctx))

	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	return rec
}

func requireSlug(slug string) (string, error) {
	if strings.TrimSpace(slug) == "" {
		return "", fmt.Errorf("slug is required")
	}
	return slug, nil
}

func postPath(slug, suffix string) string {
	return "/api/posts/" + url.PathEscape(slug) + suffix
}

type successEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func decodeSuccessData[T any](rec *httptest.ResponseRecorder) (T, error) {
	var zero T
	if rec.Code != http.StatusOK {
		return zero, decodeHTTPError(rec)
	}

	var envelope successEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		return zero, fmt.Errorf("decode success envelope: %w", err)
	}
	if envelope.Code != http.StatusOK {
		return zero, fmt.Errorf("inkwell business code=%d msg=%s", envelope.Code, envelope.Msg)
	}

	var out T
	if err := json.Unmarshal(envelope.Data, &out); err != nil {
		return zero, fmt.Errorf("decode success data: %w", err)
	}
	return out, nil
}

type errorEnvelope struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail"`
}

func decodeHTTPError(rec *httptest.ResponseRecorder) error {
	body := strings.TrimSpace(rec.Body.String())
	if body == "" {
		return fmt.Errorf("inkwell http=%d", rec.Code)
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err == nil && envelope.Msg != "" {
		if envelope.Detail != "" {
			return fmt.Errorf("inkwell http=%d %s: %s", rec.Code, envelope.Msg, envelope.Detail)
		}
		return fmt.Errorf("inkwell http=%d %s", rec.Code, envelope.Msg)
	}
	return fmt.Errorf("inkwell http=%d body=%s", rec.Code, body)
}
