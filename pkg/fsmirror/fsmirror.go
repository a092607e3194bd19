// Package fsmirror implements the filesystem mirror (spec §6): relative
// paths under a project root, normalized and traversal-guarded in the
// style of the teacher's pkg/fileutil path-safety helpers, adapted from
// absolute-path validation to relative-root confinement.
package fsmirror

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("fsmirror")

// Mirror is the FileSystem implementation rooted at a project directory.
type Mirror struct {
	Root string
}

// New returns a Mirror rooted at root.
func New(root string) *Mirror {
	return &Mirror{Root: root}
}

// normalize implements spec §6's path rule: backslashes to slashes,
// strip leading "./", refuse any ".." segment.
func normalize(p string) (string, error) {
	clean := strings.ReplaceAll(p, `\`, "/")
	clean = strings.TrimPrefix(clean, "./")
	for _, segment := range strings.Split(clean, "/") {
		if segment == ".." {
			return "", enginerr.ErrPathTraversal
		}
	}
	return path.Clean(clean), nil
}

func (m *Mirror) resolve(p string) (string, error) {
	normalized, err := normalize(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.Root, filepath.FromSlash(normalized)), nil
}

func (m *Mirror) Read(ctx context.Context, relPath string) (string, error) {
	full, err := m.resolve(relPath)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("fsmirror: read %s: %w", relPath, err)
	}
	return string(content), nil
}

func (m *Mirror) Write(ctx context.Context, relPath, content string) error {
	full, err := m.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("fsmirror: mkdir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("fsmirror: write %s: %w", relPath, err)
	}
	return nil
}

func (m *Mirror) Mkdir(ctx context.Context, relPath string, recursive bool) error {
	full, err := m.resolve(relPath)
	if err != nil {
		return err
	}
	if recursive {
		if err := os.MkdirAll(full, 0o755); err != nil {
			return fmt.Errorf("fsmirror: mkdir -p %s: %w", relPath, err)
		}
		return nil
	}
	if err := os.Mkdir(full, 0o755); err != nil {
		return fmt.Errorf("fsmirror: mkdir %s: %w", relPath, err)
	}
	return nil
}

func (m *Mirror) List(ctx context.Context, relPath string) ([]string, error) {
	full, err := m.resolve(relPath)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("fsmirror: list %s: %w", relPath, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Watch implements spec §6's watch(path, cb) with fsnotify (SPEC_FULL
// §6), invoking cb with each fsnotify event's String() form (its path under
// Root plus the operation) until ctx is canceled. Only the directory at
// relPath itself is watched; changes inside its subdirectories are not
// reported.
func (m *Mirror) Watch(ctx context.Context, relPath string, cb func(event string)) error {
	full, err := m.resolve(relPath)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsmirror: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(full); err != nil {
		return fmt.Errorf("fsmirror: watching %s: %w", relPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if log.Enabled() {
				log.Printf("fsnotify event: %s", event)
			}
			cb(event.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("fsnotify error: %v", err)
		}
	}
}

func (m *Mirror) GetDirectoryTree(ctx context.Context) (ports.TreeEntry, error) {
	root := ports.TreeEntry{Name: "", IsDir: true}
	err := m.buildTree(m.Root, &root)
	return root, err
}

func (m *Mirror) buildTree(dir string, node *ports.TreeEntry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("fsmirror: reading directory tree at %s: %w", dir, err)
	}
	for _, entry := range entries {
		child := ports.TreeEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if entry.IsDir() {
			if err := m.buildTree(filepath.Join(dir, entry.Name()), &child); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}
	return nil
}
