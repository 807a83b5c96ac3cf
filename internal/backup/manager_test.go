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
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/config"
)

type fakeSource struct {
	path          string
	checkpoints   int
	checkpointErr error
}

func (f *fakeSource) Checkpoint(context.Context) error {
	f.checkpoints++
	return f.checkpointErr
}

func (f *fakeSource) DatabasePath() string { return f.path }

func newTestManager(t *testing.T, compress bool) (*Manager, *fakeSource) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fairplay.duckdb")
	if err := os.WriteFile(dbPath, []byte("duckdb file contents"), 0o600); err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{path: dbPath}
	m, err := NewManager(config.BackupConfig{
		Dir:      filepath.Join(dir, "backups"),
		Interval: time.Hour,
		Keep:     2,
		Compress: compress,
	}, src)
	if err != nil {
		t.Fatal(err)
	}

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return m, src
}

func readArchive(t *testing.T, path string, compressed bool) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		defer gz.Close()
		r = gz
	}

	files := make(map[string][]byte)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		files[hdr.Name] = data
	}
	return files
}

func TestCreateBackup(t *testing.T) {
	for _, compress := range []bool{true, false} {
		m, src := newTestManager(t, compress)

		b, err := m.CreateBackup(context.Background())
		if err != nil {
			t.Fatalf("CreateBackup(compress=%v) error = %v", compress, err)
		}
		if src.checkpoints != 1 {
			t.Errorf("checkpoints = %d, want 1", src.checkpoints)
		}
		if b.Size == 0 || b.WAL {
			t.Errorf("backup = %+v", b)
		}

		files := readArchive(t, b.FilePath, compress)
		db, ok := files[dbEntryName]
		if !ok || string(db) != "duckdb file contents" {
			t.Fatalf("database entry = %q, %v", db, ok)
		}

		sum := sha256.Sum256(db)
		if b.Checksums[dbEntryName] != hex.EncodeToString(sum[:]) {
			t.Error("checksum does not match archived database")
		}

		var meta Backup
		if err := json.Unmarshal(files[metadataName], &meta); err != nil {
			t.Fatalf("metadata: %v", err)
		}
		if meta.ID != b.ID || meta.Checksums[dbEntryName] == "" {
			t.Errorf("metadata = %+v", meta)
		}
	}
}

func TestCreateBackupIncludesWAL(t *testing.T) {
	m, src := newTestManager(t, true)
	src.checkpointErr = errors.New("checkpoint busy")
	if err := os.WriteFile(src.path+".wal", []byte("wal"), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("a failed checkpoint should not abort the backup: %v", err)
	}
	if !b.WAL {
		t.Error("WAL should be included")
	}
	if files := readArchive(t, b.FilePath, true); string(files[walEntryName]) != "wal" {
		t.Errorf("wal entry = %q", files[walEntryName])
	}
}

func TestCreateBackupMissingDatabase(t *testing.T) {
	m, src := newTestManager(t, true)
	if err := os.Remove(src.path); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateBackup(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if paths, _ := m.List(); len(paths) != 0 {
		t.Errorf("partial archive left behind: %v", paths)
	}
}

func TestApplyRetention(t *testing.T) {
	m, _ := newTestManager(t, true)
	ctx := context.Background()

	var created []string
	for i := 0; i < 4; i++ {
		b, err := m.CreateBackup(ctx)
		if err != nil {
			t.Fatal(err)
		}
		created = append(created, b.FilePath)
	}

	removed, err := m.ApplyRetention()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	paths, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != created[3] || paths[1] != created[2] {
		t.Errorf("kept %v, want the two newest", paths)
	}
}

func TestNewManagerRequiresDiskDatabase(t *testing.T) {
	_, err := NewManager(config.BackupConfig{Dir: t.TempDir(), Interval: time.Hour, Keep: 1}, &fakeSource{})
	if err == nil {
		t.Fatal("expected error for a store without a file")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	m, _ := newTestManager(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if m.String() != "database-backup" {
		t.Errorf("String() = %q", m.String())
	}
}
