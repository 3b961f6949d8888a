// Package localsettings keeps process-wide local state in a yaml file next to the databases.
package localsettings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

type SensorState struct {
	LastSync         *time.Time `yaml:"lastSync,omitempty"`
	DialogShown      bool       `yaml:"dialogShown,omitempty"`
	WidgetRef        string     `yaml:"widgetRef,omitempty"`
	AlertsRegistered bool       `yaml:"alertsRegistered,omitempty"`
}

type GlobalState struct {
	LastSync   *time.Time `yaml:"lastSync,omitempty"`
	WidgetCard string     `yaml:"widgetCard,omitempty"`
}

type state struct {
	SortOrder      []string               `yaml:"sortOrder"`
	KeepConnection map[string]bool        `yaml:"keepConnection"`
	Sensors        map[string]SensorState `yaml:"sensors"`
	Global         GlobalState            `yaml:"global"`
}

// Store is safe for concurrent use. Every change is written to disk before the call returns.
// A Store without a path only keeps its state in memory.
type Store struct {
	mu    sync.Mutex
	path  string
	state state
}

func New(path string) (*Store, error) {
	s := &Store{path: path}
	s.state.init()

	if path == "" {
		return s, nil
	}

	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local settings: %w", err)
	}

	if err := yaml.Unmarshal(buf, &s.state); err != nil {
		return nil, fmt.Errorf("parse local settings %s: %w", path, err)
	}
	s.state.init()

	return s, nil
}

func (st *state) init() {
	if st.KeepConnection == nil {
		st.KeepConnection = map[string]bool{}
	}
	if st.Sensors == nil {
		st.Sensors = map[string]SensorState{}
	}
}

func (s *Store) update(fn func(*state)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)

	return s.save()
}

// save writes to a temporary file in the same directory and renames it over the old file.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	buf, err := yaml.Marshal(&s.state)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save local settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("save local settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save local settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save local settings: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save local settings: %w", err)
	}

	return nil
}

func (s *Store) AppendSortOrder(sensorID string) error {
	return s.update(func(st *state) {
		if !slices.Contains(st.SortOrder, sensorID) {
			st.SortOrder = append(st.SortOrder, sensorID)
		}
	})
}

func (s *Store) RemoveSortOrder(sensorID string) error {
	return s.update(func(st *state) {
		st.SortOrder = slices.DeleteFunc(st.SortOrder, func(id string) bool { return id == sensorID })
	})
}

// ReplaceSortOrder keeps the position and local state of a sensor whose id changed.
func (s *Store) ReplaceSortOrder(oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	return s.update(func(st *state) {
		i := slices.Index(st.SortOrder, oldID)
		switch {
		case slices.Contains(st.SortOrder, newID):
			if i >= 0 {
				st.SortOrder = slices.Delete(st.SortOrder, i, i+1)
			}
		case i >= 0:
			st.SortOrder[i] = newID
		default:
			st.SortOrder = append(st.SortOrder, newID)
		}

		if keep, ok := st.KeepConnection[oldID]; ok {
			delete(st.KeepConnection, oldID)
			st.KeepConnection[newID] = keep
		}
		if sensor, ok := st.Sensors[oldID]; ok {
			delete(st.Sensors, oldID)
			st.Sensors[newID] = sensor
		}
	})
}

func (s *Store) SortOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.SortOrder)
}

func (s *Store) SetKeepConnection(sensorID string, keep bool) error {
	return s.update(func(st *state) {
		if keep {
			st.KeepConnection[sensorID] = true
		} else {
			delete(st.KeepConnection, sensorID)
		}
	})
}

func (s *Store) KeepConnection(sensorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.KeepConnection[sensorID]
}

func (s *Store) SetSensorState(sensorID string, sensor SensorState) error {
	return s.update(func(st *state) {
		st.Sensors[sensorID] = sensor
	})
}

func (s *Store) SensorState(sensorID string) (SensorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor, ok := s.state.Sensors[sensorID]
	return sensor, ok
}

func (s *Store) ClearSensorState(sensorID string) error {
	return s.update(func(st *state) {
		delete(st.Sensors, sensorID)
	})
}

func (s *Store) SetGlobalState(global GlobalState) error {
	return s.update(func(st *state) {
		st.Global = global
	})
}

func (s *Store) GlobalState() GlobalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Global
}

func (s *Store) ClearGlobalState() error {
	return s.update(func(st *state) {
		st.Global = GlobalState{}
	})
}
