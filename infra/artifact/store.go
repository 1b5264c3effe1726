// Package artifact persists trained model snapshots on the local filesystem.
package artifact

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/prediction"
)

// File names inside the artifact directory.
const (
	ModelFile    = "trained_model.gob.zst"
	ScalerFile   = "scaler.gob.zst"
	MetadataFile = "model_metadata.json"
)

// FileStore keeps one snapshot as three co-located files. The metadata file
// is written last and acts as the commit marker.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// Dir returns the artifact directory.
func (s *FileStore) Dir() string { return s.dir }

// Save implements prediction.ArtifactStore.
func (s *FileStore) Save(ctx context.Context, snap *prediction.Snapshot) error {
	if snap == nil || snap.Estimator == nil || snap.Scaler == nil {
		return errors.New("incomplete snapshot")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	est := snap.Estimator
	if err := s.writeGob(ModelFile, &est); err != nil {
		return fmt.Errorf("write estimator: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.writeGob(ScalerFile, snap.Scaler); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	meta, err := json.MarshalIndent(snap.Meta, "", "  ")
	if err != nil {
		return err
	}
	if err := s.writeFile(MetadataFile, func(w io.Writer) error {
		_, err := w.Write(append(meta, '\n'))
		return err
	}); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Load implements prediction.ArtifactStore. A missing metadata file yields
// prediction.ErrNoArtifact.
func (s *FileStore) Load(ctx context.Context) (*prediction.Snapshot, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", prediction.ErrNoArtifact, s.dir)
	}
	if err != nil {
		return nil, err
	}
	snap := &prediction.Snapshot{}
	if err := json.Unmarshal(b, &snap.Meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var est estimator.Regressor
	if err := s.readGob(ModelFile, &est); err != nil {
		return nil, fmt.Errorf("read estimator: %w", err)
	}
	scaler := &estimator.StandardScaler{}
	if err := s.readGob(ScalerFile, scaler); err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	snap.Estimator, snap.Scaler = est, scaler
	return snap, nil
}

func (s *FileStore) writeGob(name string, v any) error {
	return s.writeFile(name, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(enc).Encode(v); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	})
}

func (s *FileStore) readGob(name string, v any) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	return gob.NewDecoder(dec).Decode(v)
}

// writeFile writes through a temporary file and renames it into place so a
// crash never leaves a truncated artifact.
func (s *FileStore) writeFile(name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
