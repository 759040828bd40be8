package history

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petr-muller/stale-sweeper/internal/config"
)

const (
	runsDirName      = "runs"
	reportTimeLayout = "20060102T150405Z"
	maxDirNameLength = 64
)

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store handles persistent storage of run reports, one directory per target
type Store struct {
	dataDir string
}

// RunsDir returns the directory run reports are stored in
func RunsDir() (string, error) {
	dataDir, err := config.SweeperDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, runsDirName), nil
}

// NewStore creates a new storage instance
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
	}
}

// targetDir maps a target (org/repo, profile name or JQL) to its directory
func (s *Store) targetDir(target string) string {
	name := strings.Trim(unsafeDirChars.ReplaceAllString(target, "_"), "_")
	if len(name) > maxDirNameLength || name != target {
		hash := fnv.New32a()
		_, _ = hash.Write([]byte(target))
		if len(name) > maxDirNameLength {
			name = name[:maxDirNameLength]
		}
		name = fmt.Sprintf("%s-%08x", name, hash.Sum32())
	}
	return filepath.Join(s.dataDir, name)
}

// Save stores a report under its target
func (s *Store) Save(report Report) (string, error) {
	if report.Target == "" {
		return "", errors.New("report has no target")
	}
	dir := s.targetDir(report.Target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, report.Started.UTC().Format(reportTimeLayout)+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// List returns up to limit reports of the target, newest first. A limit of
// zero or less returns all of them.
func (s *Store) List(target string, limit int) ([]Report, error) {
	return s.listDir(s.targetDir(target), limit)
}

func (s *Store) listDir(dir string, limit int) ([]Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			names = append(names, entry.Name())
		}
	}
	// timestamps in names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	reports := make([]Report, 0, len(names))
	for _, name := range names {
		report, err := loadReport(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Latest returns the newest report of the target, nil when there is none
func (s *Store) Latest(target string) (*Report, error) {
	reports, err := s.List(target, 1)
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return &reports[0], nil
}

// Targets returns the names of all targets with stored reports
func (s *Store) Targets() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var targets []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		reports, err := s.listDir(filepath.Join(s.dataDir, entry.Name()), 1)
		if err != nil || len(reports) == 0 {
			continue // Skip directories without readable reports
		}
		targets = append(targets, reports[0].Target)
	}
	sort.Strings(targets)
	return targets, nil
}

func loadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("failed to unmarshal report %s: %w", path, err)
	}
	return report, nil
}
