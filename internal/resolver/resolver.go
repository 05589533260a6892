// Package resolver implements C7: mapping a normalized request path and
// protocol to a concrete file under the public root, by trying an
// ordered, protocol-aware sequence of candidate filenames.
package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubyroobs/rubyshd/internal/model"
)

var ErrNotFound = errors.New("resolver: no candidate file found")

// Result is a resolved file along with the information the pipeline
// needs to decide how to render it.
type Result struct {
	// AbsolutePath is the canonical, symlink-resolved path of the
	// matched file, guaranteed to be inside Root.
	AbsolutePath string
	// Ext is the matched candidate's suffix, e.g. ".md.hbs", ".hbs", or "".
	Ext string
}

// Resolve finds the first existing regular file for (path, protocol)
// under root, per the candidate suffix list in spec.md §4.5.
func Resolve(root, reqPath string, protocol model.Protocol) (*Result, error) {
	target := filepath.Join(root, filepath.FromSlash(reqPath))

	info, statErr := os.Stat(target)
	isDir := (statErr == nil && info.IsDir()) || strings.HasSuffix(reqPath, "/")

	var candidates []string
	if isDir {
		candidates = directoryCandidates(protocol)
		for _, suffix := range candidates {
			if r, ok := tryCandidate(root, filepath.Join(target, suffix)); ok {
				return r, nil
			}
		}
		return nil, ErrNotFound
	}

	candidates = fileCandidates(protocol)
	for _, suffix := range candidates {
		if r, ok := tryCandidate(root, target+suffix); ok {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func directoryCandidates(protocol model.Protocol) []string {
	c := []string{"index.hbs"}
	switch protocol {
	case model.ProtocolHTTPS:
		c = append(c, "index.htm", "index.htm.hbs", "index.html", "index.html.hbs")
	case model.ProtocolGemini:
		c = append(c, "index.gmi", "index.gmi.hbs")
	}
	return c
}

func fileCandidates(protocol model.Protocol) []string {
	c := []string{"", ".hbs"}
	switch protocol {
	case model.ProtocolHTTPS:
		c = append(c, ".htm", ".htm.hbs", ".html", ".html.hbs")
	case model.ProtocolGemini:
		c = append(c, ".gmi", ".gmi.hbs")
	}
	c = append(c, ".md", ".md.hbs")
	return c
}

// tryCandidate reports whether candidatePath is a regular, readable
// file whose canonical (symlink-resolved) path is still inside root.
func tryCandidate(root, candidatePath string) (*Result, bool) {
	if _, err := os.Lstat(candidatePath); err != nil {
		return nil, false
	}

	// Resolve the full path, not just a symlink leaf: an intermediate
	// directory component can itself be a symlink, and os.Lstat on the
	// full path alone would never surface that.
	resolved, err := filepath.EvalSymlinks(candidatePath)
	if err != nil {
		return nil, false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, false
	}
	if !info.Mode().IsRegular() {
		return nil, false
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, false
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, false
	}
	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return nil, false
	}

	rel, err := filepath.Rel(absRoot, absResolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, false
	}

	return &Result{AbsolutePath: absResolved, Ext: matchedExt(absResolved)}, true
}

// matchedExt returns the recognized rendering suffix of path: ".md.hbs",
// ".hbs", or "" for everything else (treated as static).
func matchedExt(path string) string {
	switch {
	case strings.HasSuffix(path, ".md.hbs"):
		return ".md.hbs"
	case strings.HasSuffix(path, ".hbs"):
		return ".hbs"
	default:
		return ""
	}
}
