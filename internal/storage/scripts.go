package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const scriptExt = ".lua"

// DownloadPath is the api route a script is served from.
func DownloadPath(name string) string {
	return "/v1/download/" + name
}

// validScriptName accepts bare ".lua" file names only.
func validScriptName(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, scriptExt) && len(name) > len(scriptExt)
}

// Script operations (filesystem-backed)

// WriteScripts writes every non-blank script into the output directory,
// replacing files of the same name, and returns name -> file path.
func (r *RedisStorage) WriteScripts(ctx context.Context, scripts map[string]string) (map[string]string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := make(map[string]string)
	for _, name := range names {
		content := scripts[name]
		if strings.TrimSpace(content) == "" {
			continue
		}
		if !validScriptName(name) {
			return saved, fmt.Errorf("invalid script name %q", name)
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		path := filepath.Join(r.outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			r.logger.Error("Failed to write script", "name", name, "error", err)
			return saved, fmt.Errorf("failed to write %s: %w", name, err)
		}
		saved[name] = path
		r.logger.Debug("Script saved", "path", path)
	}
	return saved, nil
}

// ListScripts returns the .lua files in the output directory, sorted by name.
func (r *RedisStorage) ListScripts(ctx context.Context) ([]ScriptFile, error) {
	entries, err := os.ReadDir(r.outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []ScriptFile{}, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	files := make([]ScriptFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !validScriptName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			r.logger.Warn("Failed to stat script", "name", entry.Name(), "error", err)
			continue
		}
		files = append(files, ScriptFile{
			Name: entry.Name(),
			Size: info.Size(),
			Path: DownloadPath(entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// OpenScript opens a script for reading. The caller closes it.
func (r *RedisStorage) OpenScript(ctx context.Context, name string) (io.ReadCloser, error) {
	if !validScriptName(name) {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
	}

	f, err := os.Open(filepath.Join(r.outputDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
		}
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	return f, nil
}
