// Package images keeps the custom background images users pick for their sensors.
package images

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var ErrInvalidSensorID = errors.New("sensor id cannot be used as a file name")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// path maps a sensor id to its image file. Separators in mac ids are replaced.
func (s *Store) path(sensorID string) (string, error) {
	name := unsafeChars.ReplaceAllString(sensorID, "_")
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidSensorID
	}
	return filepath.Join(s.dir, name+".img"), nil
}

func (s *Store) SaveCustomBackground(sensorID string, r io.Reader) error {
	p, err := s.path(sensorID)
	if err != nil {
		return err
	}

	f, err := os.Create(p)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func (s *Store) HasCustomBackground(sensorID string) bool {
	p, err := s.path(sensorID)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// DeleteCustomBackground removes the image of a sensor. A sensor without one is not an error.
func (s *Store) DeleteCustomBackground(sensorID string) error {
	p, err := s.path(sensorID)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete background image: %w", err)
	}

	return nil
}
