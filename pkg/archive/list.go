package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ArchiveInfo holds metadata about an existing archive file.
type ArchiveInfo struct {
	Path      string // Full filesystem path
	Filename  string // Base filename
	Size      int64  // File size in bytes
	Timestamp string // From manifest, or file mod time
	World     string // From manifest
	Entities  int    // From manifest
}

// ListArchives scans an archive directory and returns info about each
// archive, sorted newest-first.
func ListArchives(archiveDir string) ([]ArchiveInfo, error) {
	pattern := filepath.Join(archiveDir, "*"+Ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	var archives []ArchiveInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		ai := ArchiveInfo{
			Path:      path,
			Filename:  filepath.Base(path),
			Size:      info.Size(),
			Timestamp: info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
		}

		// The manifest is richer than the file's mtime when readable.
		if m, err := readManifest(path); err == nil {
			ai.Timestamp = m.Timestamp
			ai.World = m.World
			ai.Entities = m.Entities
		}

		archives = append(archives, ai)
	}

	// RFC3339 sorts lexically; the filename breaks ties.
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Timestamp != archives[j].Timestamp {
			return archives[i].Timestamp > archives[j].Timestamp
		}
		return archives[i].Filename > archives[j].Filename
	})

	return archives, nil
}

// Latest returns the path of the newest archive in dir, or "" when there is
// none.
func Latest(archiveDir string) (string, error) {
	archives, err := ListArchives(archiveDir)
	if err != nil || len(archives) == 0 {
		return "", err
	}
	return archives[0].Path, nil
}

// Prune removes all but the newest keep archives and returns how many were
// removed. keep <= 0 removes nothing.
func Prune(archiveDir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	archives, err := ListArchives(archiveDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, ai := range archives[min(keep, len(archives)):] {
		if err := os.Remove(ai.Path); err != nil {
			return removed, fmt.Errorf("archive: prune %s: %w", ai.Filename, err)
		}
		removed++
	}
	return removed, nil
}

// readManifest reads only the leading manifest line of an archive.
func readManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeManifest(bufio.NewReader(f))
}
