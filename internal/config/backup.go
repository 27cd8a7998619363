package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the maximum number of config backups kept per corpus.
	MaxBackups = 3

	// BackupSuffix is the file extension for backup files.
	BackupSuffix = ".bak"
)

// Backup creates a timestamped backup of corpusDir's config.json.
// Returns the backup file path on success, or "" if no config exists
// yet to back up.
func Backup(corpusDir string) (string, error) {
	configPath := ConfigPath(corpusDir)
	if !Exists(corpusDir) {
		return "", nil
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", configPath, BackupSuffix, timestamp)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("reading config for backup: %w", err)
	}

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}

	// Best-effort: pruning old backups never fails the backup itself.
	_ = cleanupOldBackups(corpusDir)

	return backupPath, nil
}

// ListBackups returns all backup files for corpusDir's config, newest first.
func ListBackups(corpusDir string) ([]string, error) {
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing corpus dir: %w", err)
	}

	prefix := "config.json" + BackupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(corpusDir, entry.Name()))
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		infoI, errI := os.Stat(backups[i])
		infoJ, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return false
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return backups, nil
}

func cleanupOldBackups(corpusDir string) error {
	backups, err := ListBackups(corpusDir)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for _, backup := range backups[MaxBackups:] {
		_ = os.Remove(backup)
	}
	return nil
}

// Restore replaces corpusDir's config.json with the contents of
// backupPath, backing up the current config first if one exists.
func Restore(corpusDir, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}

	if Exists(corpusDir) {
		if _, err := Backup(corpusDir); err != nil {
			return fmt.Errorf("backing up current config before restore: %w", err)
		}
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}

	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return fmt.Errorf("creating corpus dir: %w", err)
	}

	if err := os.WriteFile(ConfigPath(corpusDir), data, 0o644); err != nil {
		return fmt.Errorf("writing restored config: %w", err)
	}
	return nil
}
