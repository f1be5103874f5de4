package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"abook/internal/abook"
)

// MockFile is a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing imports.
type MockFilesystemManager struct {
	files  map[string]*MockFile
	ignore []string
}

// NewMockFilesystemManager creates an empty mock filesystem. ignore holds
// glob patterns matched against paths relative to the import root and
// against base names.
func NewMockFilesystemManager(ignore ...string) *MockFilesystemManager {
	return &MockFilesystemManager{files: make(map[string]*MockFile), ignore: ignore}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.files[path] = &MockFile{Content: content, Permissions: 0o644, ModTime: time.Now()}
	for dir := filepath.Dir(path); dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.AddDirectory(dir)
		}
	}
}

// AddDirectory adds a directory.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.files[path] = &MockFile{Permissions: 0o755, ModTime: time.Now(), IsDirectory: true}
}

func (m *MockFilesystemManager) info(path string, file *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*abook.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	return abook.NewPath(absPath, file.IsDirectory, m.info(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *abook.Path) (io.ReadCloser, error) {
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *abook.Path) (fs.FileInfo, error) {
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	return m.info(path.String(), file), nil
}

// FindFiles lists files under path in lexical order.
func (m *MockFilesystemManager) FindFiles(path *abook.Path, recursive bool) ([]*abook.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}
	prefix := path.String() + "/"
	var names []string
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && strings.Contains(strings.TrimPrefix(p, prefix), "/") {
			continue
		}
		names = append(names, p)
	}
	sort.Strings(names)

	out := make([]*abook.Path, len(names))
	for i, p := range names {
		out[i] = abook.NewPath(p, false, m.info(p, m.files[p]))
	}
	return out, nil
}

func (m *MockFilesystemManager) IsIgnored(path *abook.Path, root string) (bool, error) {
	rel, err := filepath.Rel(root, path.String())
	if err != nil {
		return false, err
	}
	for _, pattern := range m.ignore {
		for _, candidate := range []string{rel, filepath.Base(rel)} {
			if ok, err := filepath.Match(pattern, candidate); err != nil {
				return false, err
			} else if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

var _ abook.FilesystemManager = (*MockFilesystemManager)(nil)
