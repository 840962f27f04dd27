package restore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/and161185/logistics-keeper/internal/model"
)

// maxBackupSize bounds file imports.
const maxBackupSize = 64 << 20

// FileName returns the default backup file name for the given day.
func FileName(now time.Time) string {
	return "logistics_backup_" + now.Format("2006-01-02") + ".json"
}

// Export writes st as a pretty-printed backup document.
func Export(st model.AppState, w io.Writer) error {
	raw, err := json.MarshalIndent(st.Clone(), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(raw, '\n'))
	return err
}

// ExportFile writes a backup into dir under the default name and returns its path.
func ExportFile(st model.AppState, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	if err := Export(st, f); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

// ReadFile loads a backup file for staging. "-" reads stdin.
func ReadFile(path string) ([]byte, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxBackupSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxBackupSize {
		return nil, fmt.Errorf("backup file exceeds %d bytes", maxBackupSize)
	}
	return raw, nil
}
