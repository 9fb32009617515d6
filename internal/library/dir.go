package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirSource serves tracks straight from a local directory tree.
type DirSource struct {
	Root string
}

func (d *DirSource) List() ([]string, error) {
	if _, err := os.Stat(d.Root); err != nil {
		return nil, fmt.Errorf("audio directory %s: %w", d.Root, err)
	}

	var keys []string
	err := filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !IsAudioFile(entry.Name()) {
			return nil
		}
		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	return keys, err
}

func (d *DirSource) Localize(key string) (string, error) {
	path := filepath.Join(d.Root, filepath.FromSlash(key))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("track %s: %w", key, err)
	}
	return path, nil
}
