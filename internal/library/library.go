// Package library loads static support files (shared definition
// libraries) for the embedded-language analyzers. Contents never change
// at runtime, so every successful or failed read is memoized.
package library

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"
)

// DefaultLibrary is the alias analyzers request for the bundled
// definitions file.
const DefaultLibrary = "lib.dom.d.ts"

// Version is the constant version reported for every library file.
const Version = "1"

// ReadFileFunc reads a file's content. Injectable for tests.
type ReadFileFunc func(path string) ([]byte, error)

// StatFunc checks a path's existence. Injectable for tests.
type StatFunc func(path string) (os.FileInfo, error)

// Option configures a Loader.
type Option func(*Loader)

// WithReadFile replaces the filesystem reader.
func WithReadFile(fn ReadFileFunc) Option {
	return func(l *Loader) { l.readFile = fn }
}

// WithStat replaces the filesystem existence check.
func WithStat(fn StatFunc) Option {
	return func(l *Loader) { l.stat = fn }
}

// Loader memoizes library file contents. A failed read is logged once
// and memoized as "" so later lookups never touch the filesystem again.
type Loader struct {
	root     string
	readFile ReadFileFunc
	stat     StatFunc
	log      commonlog.Logger

	mu       sync.Mutex
	contents map[string]string
}

// NewLoader creates a loader rooted at the installation's support-files
// directory.
func NewLoader(root string, opts ...Option) *Loader {
	l := &Loader{
		root:     root,
		readFile: os.ReadFile,
		stat:     os.Stat,
		log:      commonlog.GetLogger("interlace.library"),
		contents: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the content of the named library, "" when it cannot be
// read. The analyzer proceeds with degraded results in that case.
func (l *Loader) Load(name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if content, ok := l.contents[name]; ok {
		return content
	}

	path := l.resolve(name)
	data, err := l.readFile(path)
	if err != nil {
		l.log.Errorf("cannot load library %q from %q: %s", name, path, err.Error())
		data = nil
	}
	content := string(data)
	l.contents[name] = content
	return content
}

// resolve maps a library name to a path: the recognized alias goes to a
// fixed definitions file, an existing path is used verbatim, and
// anything else is taken relative to the support-files root.
func (l *Loader) resolve(name string) string {
	if name == DefaultLibrary {
		return filepath.Join(l.root, "typedefs", DefaultLibrary)
	}
	if _, err := l.stat(name); err == nil {
		return name
	}
	return filepath.Join(l.root, name)
}
