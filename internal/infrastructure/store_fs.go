package infrastructure

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// FSOutputStore implements domain.ArtifactStore on a local directory. The
// directory listing is the only record of finished artifacts.
type FSOutputStore struct {
	dir    string
	prefix string
	logger *zap.Logger
}

// NewFSOutputStore creates a store rooted at dir whose artifacts are served
// under the URL prefix
func NewFSOutputStore(dir, prefix string, logger *zap.Logger) *FSOutputStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSOutputStore{
		dir:    dir,
		prefix: strings.TrimRight(prefix, "/"),
		logger: logger,
	}
}

// Dir returns the output directory
func (s *FSOutputStore) Dir() string {
	return s.dir
}

// EnsureDir creates the output directory if needed
func (s *FSOutputStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", domain.ErrFilesystem, err)
	}
	return nil
}

// PathFor returns the final path of name
func (s *FSOutputStore) PathFor(name string) (string, error) {
	if err := domain.ValidateArtifactName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// TempPath returns the hidden path a job writes to before Commit. Jobs
// producing the same name never share a temp file.
func (s *FSOutputStore) TempPath(name, jobID string) (string, error) {
	if err := domain.ValidateArtifactName(name); err != nil {
		return "", err
	}
	if jobID == "" || strings.ContainsAny(jobID, `/\`) {
		return "", fmt.Errorf("%w: job id %q", domain.ErrInvalidName, jobID)
	}
	return filepath.Join(s.dir, "."+name+"."+jobID+".part"), nil
}

// Remove deletes an existing artifact before it is regenerated
func (s *FSOutputStore) Remove(name string) error {
	path, err := s.PathFor(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", domain.ErrFilesystem, name, err)
	}
	return nil
}

// Commit renames a finished temp file to name
func (s *FSOutputStore) Commit(tempPath, name string) (*domain.OutputArtifact, error) {
	path, err := s.PathFor(name)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tempPath, path); err != nil {
		return nil, fmt.Errorf("%w: commit %s: %v", domain.ErrFilesystem, name, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrFilesystem, name, err)
	}

	artifact := s.artifactFor(info)
	return &artifact, nil
}

// Discard removes a temp file left behind by a failed job
func (s *FSOutputStore) Discard(tempPath string) {
	if tempPath == "" {
		return
	}
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to remove temp file",
			zap.String("path", tempPath),
			zap.Error(err))
	}
}

// List returns visible regular files, newest first
func (s *FSOutputStore) List() ([]domain.OutputArtifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read output directory: %v", domain.ErrFilesystem, err)
	}

	artifacts := make([]domain.OutputArtifact, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		artifacts = append(artifacts, s.artifactFor(info))
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].Name < artifacts[j].Name
		}
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// Delete removes the named artifact
func (s *FSOutputStore) Delete(name string) error {
	path, err := s.PathFor(name)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", domain.ErrFilesystem, name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return fmt.Errorf("%w: delete %s: %v", domain.ErrFilesystem, name, err)
	}

	s.logger.Info("Deleted artifact", zap.String("name", name))
	return nil
}

func (s *FSOutputStore) artifactFor(info fs.FileInfo) domain.OutputArtifact {
	return domain.OutputArtifact{
		Name:        info.Name(),
		SizeBytes:   info.Size(),
		CreatedAt:   info.ModTime(),
		DownloadURL: s.prefix + "/" + url.PathEscape(info.Name()),
	}
}
