package content_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Fl0rencess720/inkwell/pkg/common/testutil"
	"github.com/Fl0rencess720/inkwell/pkg/content"
)

var _ = Describe("Post lifecycle", func() {
	var (
		ctx  context.Context
		root string
		ws   *content.Workspace
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()

		var err error
		ws, err = content.NewWorkspace(content.Options{
			PostsRoot:      root,
			MaxUploadBytes: 1024,
			Locker:         content.NewKeyedLocker(),
			Scaffolder: content.ScaffolderFunc(func(_ context.Context, name string) error {
				return testutil.WriteTree(root, map[string]string{
					name + "/index.md": "---\ntitle: " + name + "\ndraft: true\n---\n",
				})
			}),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("takes a post from creation to deletion", func() {
		By("scaffolding the post")
		summary, err := ws.CreatePost(ctx, "trip")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.HasIndex).To(BeTrue())
		Expect(summary.Draft).To(BeTrue())

		By("adding a folder and uploading an image into it")
		_, err = ws.CreateDirectory(ctx, "trip", "", "assets")
		Expect(err).NotTo(HaveOccurred())
		out, err := ws.Ingest(ctx, "trip", "assets", "beach.jpg", 4, strings.NewReader("jpeg"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Path).To(Equal("assets/beach.jpg"))

		By("renaming the folder")
		_, err = ws.Rename(ctx, "trip", "assets", "media")
		Expect(err).NotTo(HaveOccurred())

		By("publishing the index")
		out, err = ws.WriteFile(ctx, "trip", "index.md", []byte("---\ntitle: Trip\n---\n![](media/beach.jpg)\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Summary).NotTo(BeNil())
		Expect(out.Summary.Title).To(Equal("Trip"))
		Expect(out.Summary.Draft).To(BeFalse())

		By("listing the tree")
		nodes, err := ws.Tree(ctx, "trip")
		Expect(err).NotTo(HaveOccurred())
		var paths []string
		content.Walk(nodes, func(n content.Node) { paths = append(paths, n.Path) })
		Expect(paths).To(Equal([]string{"media", "media/beach.jpg", "index.md"}))

		By("renaming and deleting the post")
		_, err = ws.RenamePost(ctx, "trip", "summer-trip")
		Expect(err).NotTo(HaveOccurred())
		Expect(ws.DeletePost(ctx, "summer-trip")).To(Succeed())

		posts, err := ws.ListPosts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(posts).To(BeEmpty())
	})

	It("never writes outside the posts root", func() {
		outside := filepath.Dir(root)
		before, err := os.ReadDir(outside)
		Expect(err).NotTo(HaveOccurred())

		_, err = ws.CreatePost(ctx, "../evil")
		Expect(err).To(MatchError(content.ErrInvalidName))
		_, err = ws.CreateDirectory(ctx, "p", "../..", "evil")
		Expect(err).To(MatchError(content.ErrPathTraversal))
		_, err = ws.WriteFile(ctx, "p", "../../evil.md", []byte("x"))
		Expect(err).To(MatchError(content.ErrPathTraversal))
		_, err = ws.Ingest(ctx, "p", "../../", "evil.md", 1, strings.NewReader("x"))
		Expect(err).To(MatchError(content.ErrPathTraversal))

		after, err := os.ReadDir(outside)
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(HaveLen(len(before)))
	})

	It("keeps concurrent writes to one post whole", func() {
		_, err := ws.CreatePost(ctx, "busy")
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				body := strings.Repeat(string(rune('a'+i)), 512)
				_, err := ws.WriteFile(ctx, "busy", "shared.md", []byte(body))
				Expect(err).NotTo(HaveOccurred())
			}(i)
		}
		wg.Wait()

		data, err := os.ReadFile(filepath.Join(root, "busy", "shared.md"))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveLen(512))
		Expect(strings.Count(string(data), string(data[0]))).To(Equal(512))

		entries, err := os.ReadDir(filepath.Join(root, "busy"))
		Expect(err).NotTo(HaveOccurred())
		for _, e := range entries {
			Expect(content.IsSystemArtifact(e.Name())).To(BeFalse())
		}
	})
})
