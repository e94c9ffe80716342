package storage

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"script_ai_server/internal/metrics"
	"script_ai_server/internal/types"
	"script_ai_server/internal/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidName     = errors.New("invalid name")
)

// FileInfo describes one stored file of a project.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// ProjectStore keeps every project in its own directory below the root of fs.
type ProjectStore struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewProjectStore roots an OS filesystem at dir, creating it when missing.
func NewProjectStore(dir string, logger zerolog.Logger) (*ProjectStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scripts directory %s: %w", dir, err)
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scripts directory %s: %w", abs, err)
	}
	return NewProjectStoreFs(afero.NewBasePathFs(osFs, abs), logger), nil
}

// NewProjectStoreFs uses fs as is; its root is the scripts directory.
func NewProjectStoreFs(fs afero.Fs, logger zerolog.Logger) *ProjectStore {
	return &ProjectStore{
		fs:     fs,
		logger: logger.With().Str("component", "project_store").Logger(),
	}
}

func projectDir(name string) (string, error) {
	clean := utils.SanitizeFilePath(name)
	if clean == "" || strings.Contains(clean, "/") {
		return "", fmt.Errorf("%w: project %q", ErrInvalidName, name)
	}
	return clean, nil
}

// SaveProject writes files below the project directory and returns how many were
// written. Names that sanitize to nothing are skipped.
func (s *ProjectStore) SaveProject(ctx context.Context, project string, files []types.GeneratedFile) (int, error) {
	dir, err := projectDir(project)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create project directory %s: %w", dir, err)
	}

	written := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		rel := utils.SanitizeFilePath(f.Name)
		if rel == "" {
			s.logger.Warn().Str("project", dir).Str("name", f.Name).Msg("skipping file with unusable name")
			continue
		}

		filePath := path.Join(dir, rel)
		if err := s.fs.MkdirAll(path.Dir(filePath), 0755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := afero.WriteFile(s.fs, filePath, []byte(f.Content), 0644); err != nil {
			return written, fmt.Errorf("failed to write file %s: %w", rel, err)
		}

		s.logger.Debug().Str("path", filePath).Msg("file saved")
		written++
	}

	metrics.ProjectsSavedTotal.Inc()
	s.logger.Info().Str("project", dir).Int("files", written).Msg("project stored")
	if written != len(files) {
		s.logger.Warn().Int("parsed", len(files)).Int("stored", written).Str("project", dir).
			Msg("mismatch between parsed and stored files")
	}
	return written, nil
}

// Exists reports whether the project directory is present.
func (s *ProjectStore) Exists(project string) bool {
	dir, err := projectDir(project)
	if err != nil {
		return false
	}
	ok, err := afero.DirExists(s.fs, dir)
	return err == nil && ok
}

// ListFiles returns the project's files sorted by path.
func (s *ProjectStore) ListFiles(project string) ([]FileInfo, error) {
	dir, err := projectDir(project)
	if err != nil {
		return nil, err
	}
	if !s.Exists(dir) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, dir)
	}

	files := []FileInfo{}
	err = afero.Walk(s.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), dir+"/")
		files = append(files, FileInfo{Name: rel, Size: info.Size(), Type: utils.DetermineFileType(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open opens a stored file by its path relative to the scripts directory
// (e.g. "my_project/main.py"). The caller closes the file.
func (s *ProjectStore) Open(filePath string) (afero.File, os.FileInfo, error) {
	rel := utils.SanitizeFilePath(filePath)
	if rel == "" {
		return nil, nil, fmt.Errorf("%w: %q", ErrFileNotFound, filePath)
	}

	info, err := s.fs.Stat(rel)
	if err != nil || info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}
	f, err := s.fs.Open(rel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", rel, err)
	}
	return f, info, nil
}

// WriteZip streams the project as a deflated ZIP archive to w. Entries are named
// "<project>/<path>".
func (s *ProjectStore) WriteZip(project string, w io.Writer) error {
	dir, err := projectDir(project)
	if err != nil {
		return err
	}
	if !s.Exists(dir) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, dir)
	}

	zipWriter := zip.NewWriter(w)
	fileCount := 0
	err = afero.Walk(s.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("error creating zip header for %s: %w", p, err)
		}
		header.Name = filepath.ToSlash(p)
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("error creating zip entry for file %s: %w", p, err)
		}

		file, err := s.fs.Open(p)
		if err != nil {
			return fmt.Errorf("error opening file %s: %w", p, err)
		}
		defer file.Close()

		if _, err := io.Copy(writer, file); err != nil {
			return fmt.Errorf("error writing file %s to zip: %w", p, err)
		}
		fileCount++
		return nil
	})
	if err != nil {
		return fmt.Errorf("error walking project %s: %w", dir, err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("error closing zip writer: %w", err)
	}
	s.logger.Debug().Str("project", dir).Int("files", fileCount).Msg("project zipped")
	return nil
}
