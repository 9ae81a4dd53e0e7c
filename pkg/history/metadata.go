package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
)

const metadataFile = "metadata.json"

type MetadataClient struct {
	path string
}

type Metadata struct {
	Version   int `json:",omitempty"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MetadataPath returns the metadata file path
func MetadataPath(dir string) string {
	return filepath.Join(dir, metadataFile)
}

func NewMetadataClient(dir string) MetadataClient {
	return MetadataClient{
		path: MetadataPath(dir),
	}
}

// Get returns the history metadata
func (c MetadataClient) Get() (Metadata, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return Metadata{}, xerrors.Errorf("unable to open a file: %w", err)
	}
	defer f.Close()

	var metadata Metadata
	if err = json.NewDecoder(f).Decode(&metadata); err != nil {
		return Metadata{}, xerrors.Errorf("unable to decode metadata: %w", err)
	}
	return metadata, nil
}

// Update replaces the metadata file. Readers in other processes see either
// the previous or the new content.
func (c MetadataClient) Update(meta Metadata) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0744); err != nil {
		return xerrors.Errorf("mkdir error: %w", err)
	}

	f, err := os.CreateTemp(dir, metadataFile+".*")
	if err != nil {
		return xerrors.Errorf("unable to create a temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if err = json.NewEncoder(f).Encode(&meta); err != nil {
		f.Close()
		return xerrors.Errorf("unable to encode metadata: %w", err)
	}
	if err = f.Close(); err != nil {
		return xerrors.Errorf("unable to write metadata: %w", err)
	}
	if err = os.Rename(f.Name(), c.path); err != nil {
		return xerrors.Errorf("unable to replace metadata: %w", err)
	}
	return nil
}
