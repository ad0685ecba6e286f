package bundler

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// ErrCorrupt means the bundle does not match its manifest
var ErrCorrupt = errors.New("bundle corrupt")

// zipEpoch keeps bundles byte-identical across runs
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file of the bundle
type Entry struct {
	Name string
	Data []byte
}

// Write creates the zip at path: manifest.json first, then entries by name.
func Write(path string, manifest *Manifest, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		if e.Name == ManifestName {
			return fmt.Errorf("entry name %s is reserved", ManifestName)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate bundle entry: %s", e.Name)
		}
		seen[e.Name] = true
	}

	manifestJSON, err := manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	outputFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outputFile.Close()

	zipWriter := zip.NewWriter(outputFile)
	if err := addToZip(zipWriter, ManifestName, manifestJSON); err != nil {
		return fmt.Errorf("failed to add manifest: %w", err)
	}
	for _, e := range sorted {
		if err := addToZip(zipWriter, e.Name, e.Data); err != nil {
			return fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish bundle: %w", err)
	}
	return outputFile.Close()
}

func addToZip(zw *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write(data)
	return err
}

// Open reads a bundle and checks every file against the manifest
func Open(path string) (*Manifest, map[string][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer zr.Close()

	files := make(map[string][]byte, len(zr.File))
	var manifestJSON []byte
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		if f.Name == ManifestName {
			manifestJSON = data
			continue
		}
		files[f.Name] = data
	}
	if manifestJSON == nil {
		return nil, nil, fmt.Errorf("%w: no %s", ErrCorrupt, ManifestName)
	}

	var m Manifest
	if err := json.Unmarshal(manifestJSON, &m); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid manifest: %v", ErrCorrupt, err)
	}
	if err := m.check(files); err != nil {
		return nil, nil, err
	}
	return &m, files, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
