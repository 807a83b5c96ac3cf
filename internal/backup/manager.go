// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
)

const (
	filePrefix   = "fairplay-backup-"
	metadataName = "backup-metadata.json"
	dbEntryName  = "database/fairplay.duckdb"
	walEntryName = "database/fairplay.duckdb.wal"
)

// Source is the database being backed up.
type Source interface {
	Checkpoint(ctx context.Context) error
	DatabasePath() string
}

// Backup describes one archive.
type Backup struct {
	ID        string            `json:"id"`
	FilePath  string            `json:"file_path"`
	CreatedAt time.Time         `json:"created_at"`
	Size      int64             `json:"size"`
	Duration  time.Duration     `json:"duration"`
	Checksums map[string]string `json:"checksums"`
	WAL       bool              `json:"wal_included"`
}

// Manager creates archives on a schedule and applies retention.
type Manager struct {
	cfg config.BackupConfig
	src Source
	now func() time.Time
}

// NewManager validates cfg and creates the backup directory.
func NewManager(cfg config.BackupConfig, src Source) (*Manager, error) {
	if src == nil || src.DatabasePath() == "" {
		return nil, errors.New("backup requires an on-disk database")
	}
	if cfg.Dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Manager{cfg: cfg, src: src, now: time.Now}, nil
}

// Serve implements suture.Service. A failed backup is logged and retried
// on the next interval.
func (m *Manager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", m.cfg.Interval).Str("dir", m.cfg.Dir).Msg("Backup scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.CreateBackup(ctx); err != nil {
				logging.Error().Err(err).Msg("Scheduled backup failed")
				continue
			}
			if _, err := m.ApplyRetention(); err != nil {
				logging.Error().Err(err).Msg("Backup retention failed")
			}
		}
	}
}

// String names the service for the supervisor.
func (m *Manager) String() string {
	return "database-backup"
}

// CreateBackup writes one archive. A partial archive is removed on error.
func (m *Manager) CreateBackup(ctx context.Context) (b *Backup, err error) {
	start := m.now().UTC()
	id := uuid.NewString()[:8]
	ext := ".tar"
	if m.cfg.Compress {
		ext = ".tar.gz"
	}
	b = &Backup{
		ID:        id,
		FilePath:  filepath.Join(m.cfg.Dir, filePrefix+start.Format("20060102T150405Z")+"-"+id+ext),
		CreatedAt: start,
		Checksums: make(map[string]string),
	}

	if cerr := m.src.Checkpoint(ctx); cerr != nil {
		logging.Warn().Err(cerr).Msg("Checkpoint failed, backup may include uncommitted data")
	}

	path := b.FilePath
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := m.writeArchive(b); err != nil {
		return nil, err
	}

	info, err := os.Stat(b.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	b.Size = info.Size()
	b.Duration = m.now().UTC().Sub(start)

	logging.Info().
		Str("backup_id", b.ID).
		Str("file", b.FilePath).
		Int64("size", b.Size).
		Bool("wal", b.WAL).
		Msg("Backup created")
	return b, nil
}

func (m *Manager) writeArchive(b *Backup) (err error) {
	//nolint:gosec // path is built from configuration
	out, err := os.OpenFile(b.FilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	closers := []io.Closer{out}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	var dst io.Writer = out
	if m.cfg.Compress {
		gz := gzip.NewWriter(out)
		closers = append(closers, gz)
		dst = gz
	}
	tw := tar.NewWriter(dst)
	closers = append(closers, tw)

	dbPath := m.src.DatabasePath()
	if err := addFile(tw, dbPath, dbEntryName, b); err != nil {
		return fmt.Errorf("add database file: %w", err)
	}
	if _, statErr := os.Stat(dbPath + ".wal"); statErr == nil {
		if err := addFile(tw, dbPath+".wal", walEntryName, b); err != nil {
			return fmt.Errorf("add wal file: %w", err)
		}
		b.WAL = true
	}

	meta, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup metadata: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    metadataName,
		Mode:    0o640,
		Size:    int64(len(meta)),
		ModTime: b.CreatedAt,
	}); err != nil {
		return err
	}
	_, err = tw.Write(meta)
	return err
}

// addFile streams src into the archive as name and records its checksum.
func addFile(tw *tar.Writer, src, name string, b *Backup) error {
	//nolint:gosec // path comes from the database configuration
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Mode:    0o640,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, h), f); err != nil {
		return err
	}
	b.Checksums[name] = hex.EncodeToString(h.Sum(nil))
	return nil
}

// List returns archive paths in the backup directory, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		if strings.HasSuffix(e.Name(), ".tar") || strings.HasSuffix(e.Name(), ".tar.gz") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	slices.Reverse(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(m.cfg.Dir, n)
	}
	return paths, nil
}

// ApplyRetention deletes all but the newest Keep archives and returns how
// many were removed.
func (m *Manager) ApplyRetention() (int, error) {
	paths, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(paths) <= m.cfg.Keep {
		return 0, nil
	}

	removed := 0
	var errs []error
	for _, p := range paths[m.cfg.Keep:] {
		if err := os.Remove(p); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logging.Info().Int("removed", removed).Int("kept", m.cfg.Keep).Msg("Old backups removed")
	}
	return removed, errors.Join(errs...)
}
