// Package course resolves course codes to their PDF material on disk.
// Courses live under a root directory, one subdirectory per course code,
// each holding the course's PDF.
package course

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("course not found")

type Course struct {
	Code    string
	Name    string
	PDFPath string
}

type Info struct {
	Code      string `json:"course_code"`
	Name      string `json:"course_name"`
	PDFPath   string `json:"pdf_path,omitempty"`
	PDFExists bool   `json:"pdf_exists"`
}

type Registry struct {
	dir string
}

func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Find resolves a course code to its PDF. A missing course directory and a
// course directory without any PDF both report ErrNotFound; an unreadable
// directory is a distinct failure.
func (r *Registry) Find(code string) (*Course, error) {
	courseDir := filepath.Join(r.dir, code)

	entries, err := os.ReadDir(courseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("read course directory %s: %w", code, err)
	}

	// os.ReadDir sorts by filename, so the pick is deterministic.
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			return &Course{
				Code:    code,
				Name:    "Course " + code,
				PDFPath: filepath.Join(courseDir, entry.Name()),
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: no PDF material for %s", ErrNotFound, code)
}

// List reports every course directory under the root. A missing root is an
// empty catalogue, not an error.
func (r *Registry) List() ([]Info, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("read course root: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		code := entry.Name()
		info := Info{Code: code, Name: "Course " + code}
		if c, err := r.Find(code); err == nil {
			info.PDFPath = c.PDFPath
			info.PDFExists = true
		}
		infos = append(infos, info)
	}
	return infos, nil
}
