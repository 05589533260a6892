package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rubyroobs/rubyshd/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestResolveDirectoryIndexHTTPS(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html.hbs"), "hi")

	res, err := Resolve(root, "/", model.ProtocolHTTPS)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Ext != ".hbs" {
		t.Fatalf("Ext = %q, want .hbs", res.Ext)
	}
}

func TestResolvePrefersProtocolAgnosticIndexHbs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.hbs"), "hi")
	writeFile(t, filepath.Join(root, "index.html.hbs"), "hi html")

	res, err := Resolve(root, "/", model.ProtocolHTTPS)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(res.AbsolutePath) != "index.hbs" {
		t.Fatalf("resolved %q, want index.hbs to win first", res.AbsolutePath)
	}
}

func TestResolveGeminiDoesNotMatchHTMLCandidates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "page.html"), "hi")

	_, err := Resolve(root, "/page", model.ProtocolGemini)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveStaticFileHasEmptyExt(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "logo.png"), "binary")

	res, err := Resolve(root, "/logo.png", model.ProtocolHTTPS)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Ext != "" {
		t.Fatalf("Ext = %q, want empty (static)", res.Ext)
	}
}

func TestResolveMarkdownCandidate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "blog", "post.md.hbs"), "# hi")

	res, err := Resolve(root, "/blog/post", model.ProtocolGemini)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Ext != ".md.hbs" {
		t.Fatalf("Ext = %q, want .md.hbs", res.Ext)
	}
}

func TestResolveRejectsSymlinkEscapingRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	writeFile(t, secret, "top secret")

	link := filepath.Join(root, "escape.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	_, err := Resolve(root, "/escape.txt", model.ProtocolHTTPS)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound (symlink escape must be rejected)", err)
	}
}

// A symlinked intermediate directory component must be caught even
// though the leaf file itself is a perfectly ordinary regular file.
func TestResolveRejectsSymlinkedParentDirectoryEscapingRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "top secret")

	linkedDir := filepath.Join(root, "vault")
	if err := os.Symlink(outside, linkedDir); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	_, err := Resolve(root, "/vault/secret.txt", model.ProtocolHTTPS)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound (symlinked parent directory must be rejected)", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve(root, "/nope", model.ProtocolHTTPS)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
