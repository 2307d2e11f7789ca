package media

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrNotFound = errors.New("media not found")

// Item is one file in the media library.
type Item struct {
	Filename  string  `json:"filename"`
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
}

var rawRecordingExts = []string{".avi", ".h264"}

// Recordings lists finished mp4 recordings plus raw recordings that never
// got an mp4 sibling, each group newest name first.
func (s *Service) Recordings() ([]Item, error) {
	mp4s, err := s.glob("recording_*.mp4")
	if err != nil {
		return nil, err
	}
	stems := make(map[string]struct{}, len(mp4s))
	for _, p := range mp4s {
		stems[strings.TrimSuffix(filepath.Base(p), ".mp4")] = struct{}{}
	}

	var raws []string
	for _, ext := range rawRecordingExts {
		matches, err := s.glob("recording_*" + ext)
		if err != nil {
			return nil, err
		}
		for _, p := range matches {
			if _, ok := stems[strings.TrimSuffix(filepath.Base(p), ext)]; !ok {
				raws = append(raws, p)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(raws)))

	return s.items(append(mp4s, raws...)), nil
}

// Events lists recordings, motion clips and stills, and photos, newest
// first by modification time.
func (s *Service) Events() ([]Item, error) {
	items, err := s.Recordings()
	if err != nil {
		return nil, err
	}
	for _, pattern := range []string{"motion_*.avi", "motion_*.jpg", "photo_*.jpg"} {
		matches, err := s.glob(pattern)
		if err != nil {
			return nil, err
		}
		items = append(items, s.items(matches)...)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp > items[j].Timestamp })
	return items, nil
}

// Resolve maps a client supplied filename onto a file in the media dir.
// Anything that is not a plain existing file name is ErrNotFound.
func (s *Service) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.opts.Dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// CleanupOld deletes files older than the retention window and returns how
// many were removed. A non-positive retention disables cleanup.
func (s *Service) CleanupOld() (int, error) {
	if s.opts.RetentionDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.opts.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().Add(-time.Duration(s.opts.RetentionDays) * 24 * time.Hour)
	deleted := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.opts.Dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("Cleanup: failed to delete old file")
			continue
		}
		deleted++
		s.logger.Debug().Str("file", e.Name()).Msg("Cleanup: deleted old file")
	}
	if deleted > 0 {
		s.logger.Info().
			Int("deleted", deleted).
			Int("retention_days", s.opts.RetentionDays).
			Msg("Cleanup: removed old media")
	}
	return deleted, nil
}

func (s *Service) glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.opts.Dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

func (s *Service) items(paths []string) []Item {
	out := make([]Item, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		out = append(out, Item{
			Filename:  filepath.Base(p),
			Path:      p,
			Timestamp: float64(info.ModTime().UnixNano()) / float64(time.Second),
		})
	}
	return out
}
