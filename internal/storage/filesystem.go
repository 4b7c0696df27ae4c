package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSystem handles writing downloaded images to disk.
// Images land at: {baseDir}/{site}-{lot}/{name}
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a FileSystem sink, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// BaseDir returns the root of the download tree.
func (fs *FileSystem) BaseDir() string { return fs.baseDir }

// LotDir returns the directory for one lot's images.
func (fs *FileSystem) LotDir(folder string) string {
	return filepath.Join(fs.baseDir, folder)
}

// ImagePath returns the path for a named image inside a lot folder.
func (fs *FileSystem) ImagePath(folder, name string) string {
	return filepath.Join(fs.baseDir, folder, name)
}

// Write saves image bytes, creating the lot directory if needed.
func (fs *FileSystem) Write(folder, name string, data []byte) error {
	dir := fs.LotDir(folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating lot directory: %w", err)
	}
	if err := os.WriteFile(fs.ImagePath(folder, name), data, 0644); err != nil {
		return fmt.Errorf("writing image file: %w", err)
	}
	return nil
}

// Read loads a previously written image.
func (fs *FileSystem) Read(folder, name string) ([]byte, error) {
	data, err := os.ReadFile(fs.ImagePath(folder, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image file not found: %s/%s", folder, name)
		}
		return nil, fmt.Errorf("reading image file: %w", err)
	}
	return data, nil
}

// Exists checks if an image file is already on disk.
func (fs *FileSystem) Exists(folder, name string) bool {
	_, err := os.Stat(fs.ImagePath(folder, name))
	return err == nil
}

// DeleteLot removes every file for a lot.
func (fs *FileSystem) DeleteLot(folder string) error {
	return os.RemoveAll(fs.LotDir(folder))
}
