package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"mercator-hq/mixer/pkg/schema"
)

// FileOptions controls which files a FileSource reads.
type FileOptions struct {
	// Extensions lists the file extensions to load.
	// Default: .yaml, .yml, .json
	Extensions []string

	// MaxFileSize rejects files larger than this many bytes.
	// Default: 10MB
	MaxFileSize int64

	// SkipHidden ignores files and directories starting with a dot.
	// Default: true
	SkipHidden bool

	// FollowSymlinks loads files reached through symbolic links.
	// Default: true
	FollowSymlinks bool
}

// DefaultFileOptions returns the default file options.
func DefaultFileOptions() *FileOptions {
	return &FileOptions{
		Extensions:     []string{".yaml", ".yml", ".json"},
		MaxFileSize:    10 * 1024 * 1024,
		SkipHidden:     true,
		FollowSymlinks: true,
	}
}

// FileSource loads configuration from a file or a directory tree.
type FileSource struct {
	path   string
	opts   *FileOptions
	logger *slog.Logger
}

// NewFileSource creates a source reading path, which may be a single file
// or a directory.
func NewFileSource(path string, opts *FileOptions, logger *slog.Logger) *FileSource {
	if opts == nil {
		opts = DefaultFileOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		opts:   opts,
		logger: logger,
	}
}

// Path returns the configured path.
func (s *FileSource) Path() string {
	return s.path
}

// String implements Source.
func (s *FileSource) String() string {
	return "file:" + s.path
}

// Load reads and merges every matching file under the path.
func (s *FileSource) Load(ctx context.Context) (*Bundle, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Path: s.path, Message: "path does not exist", Cause: err}
		}
		return nil, &LoadError{Path: s.path, Message: "failed to access path", Cause: err}
	}

	var files []string
	if info.IsDir() {
		files, err = s.collect(s.path)
		if err != nil {
			return nil, err
		}
	} else {
		files = []string{s.path}
	}

	cfg := &schema.Config{}
	hash := sha256.New()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.read(file)
		if err != nil {
			return nil, err
		}

		fragment, err := decode(file, data)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fragment)

		name := filepath.Base(file)
		if info.IsDir() {
			if rel, err := filepath.Rel(s.path, file); err == nil {
				name = filepath.ToSlash(rel)
			}
		}
		hash.Write([]byte(name))
		hash.Write([]byte{0})
		hash.Write(data)
		hash.Write([]byte{0})
	}
	cfg.Normalize()

	bundle := &Bundle{
		Config:   cfg,
		Revision: hex.EncodeToString(hash.Sum(nil))[:16],
		Files:    files,
		LoadedAt: time.Now(),
	}

	s.logger.Debug("configuration loaded",
		"path", s.path,
		"files", len(files),
		"revision", bundle.Revision,
	)
	return bundle, nil
}

func decode(path string, data []byte) (*schema.Config, error) {
	var (
		cfg *schema.Config
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		cfg, err = schema.DecodeJSON(data)
	} else {
		cfg, err = schema.DecodeYAML(data)
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Cause: err}
	}
	return cfg, nil
}

// read returns the contents of path after checking its size and encoding.
func (s *FileSource) read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		return nil, &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), s.opts.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{Path: path, Message: "file contains invalid UTF-8 encoding"}
	}
	return data, nil
}

// collect returns the matching files under dir in lexical order.
func (s *FileSource) collect(dir string) ([]string, error) {
	var files []string
	visited := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if s.opts.SkipHidden && isHidden(d.Name()) && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				return nil
			}
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return &LoadError{Path: path, Message: "failed to resolve symlink", Cause: err}
			}
			if visited[target] {
				return &LoadError{Path: path, Message: "symlink loop detected"}
			}
			visited[target] = true
			if !hasExtension(target, s.opts.Extensions) {
				return nil
			}
			files = append(files, path)
			return nil
		}

		if hasExtension(path, s.opts.Extensions) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, &LoadError{Path: dir, Message: "failed to walk directory", Cause: err}
	}

	sort.Strings(files)
	return files, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
