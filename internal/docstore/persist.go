package docstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/metadata"
)

// The index and metadata artifacts are companions: written together after
// every successful mutation, loaded together at startup. A missing half or a
// row-count disagreement between them means a torn write and is fatal.
const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.json"

	vectorMagic = uint32(0x44515631) // "DQV1"
)

func (s *Store) vectorsPath() string  { return filepath.Join(s.dir, vectorsFile) }
func (s *Store) metadataPath() string { return filepath.Join(s.dir, metadataFile) }

// saveArtifacts writes both artifacts. Each is written to a temp file and
// renamed into place, so a crash can leave at worst a stale or missing half,
// which loadArtifacts detects.
func (s *Store) saveArtifacts(idx *index.Flat, tab *metadata.Table) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	vtmp, err := writeTempVectors(s.dir, idx)
	if err != nil {
		return err
	}
	defer os.Remove(vtmp)

	data, err := json.MarshalIndent(tab, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	mtmp, err := writeTempFile(s.dir, "metadata-*", data)
	if err != nil {
		return err
	}
	defer os.Remove(mtmp)

	if err := os.Rename(vtmp, s.vectorsPath()); err != nil {
		return fmt.Errorf("replace vector artifact: %w", err)
	}
	if err := os.Rename(mtmp, s.metadataPath()); err != nil {
		return fmt.Errorf("replace metadata artifact: %w", err)
	}
	return nil
}

func writeTempVectors(dir string, idx *index.Flat) (string, error) {
	f, err := os.CreateTemp(dir, "vectors-*")
	if err != nil {
		return "", fmt.Errorf("write vector artifact: %w", err)
	}
	gz := gzip.NewWriter(f)
	err = writeVectors(gz, idx)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write vector artifact: %w", err)
	}
	return f.Name(), nil
}

func writeVectors(w io.Writer, idx *index.Flat) error {
	header := []uint32{vectorMagic, uint32(idx.Dimension()), uint32(idx.Size())}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, v := range idx.Vectors() {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeTempFile(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("write metadata artifact: %w", err)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write metadata artifact: %w", err)
	}
	return f.Name(), nil
}

// loadArtifacts restores the artifact pair. No artifacts at all is a fresh
// store; anything in between is corruption and the store refuses to serve.
func loadArtifacts(dir string, dim int) (*index.Flat, *metadata.Table, error) {
	vpath := filepath.Join(dir, vectorsFile)
	mpath := filepath.Join(dir, metadataFile)
	vExists, err := fileExists(vpath)
	if err != nil {
		return nil, nil, err
	}
	mExists, err := fileExists(mpath)
	if err != nil {
		return nil, nil, err
	}

	if !vExists && !mExists {
		idx, err := index.NewFlat(dim)
		if err != nil {
			return nil, nil, err
		}
		return idx, metadata.NewTable(), nil
	}
	if vExists != mExists {
		return nil, nil, fmt.Errorf("%w: artifact pair is incomplete (vectors: %t, metadata: %t)",
			domain.ErrIndexCorruption, vExists, mExists)
	}

	idx, err := readVectorsFile(vpath, dim)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(mpath)
	if err != nil {
		return nil, nil, fmt.Errorf("read metadata artifact: %w", err)
	}
	tab := metadata.NewTable()
	if err := json.Unmarshal(data, tab); err != nil {
		return nil, nil, err
	}

	if idx.Size() != tab.Len() {
		return nil, nil, fmt.Errorf("%w: %d vectors but %d metadata rows",
			domain.ErrIndexCorruption, idx.Size(), tab.Len())
	}
	return idx, tab, nil
}

func readVectorsFile(path string, dim int) (*index.Flat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read vector artifact: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: vector artifact unreadable: %v", domain.ErrIndexCorruption, err)
	}
	defer gz.Close()

	var header [3]uint32
	if err := binary.Read(gz, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: vector artifact truncated: %v", domain.ErrIndexCorruption, err)
	}
	if header[0] != vectorMagic {
		return nil, fmt.Errorf("%w: vector artifact has bad magic %#x", domain.ErrIndexCorruption, header[0])
	}
	if int(header[1]) != dim {
		return nil, fmt.Errorf("%w: vector artifact has dimension %d, store expects %d",
			domain.ErrDimensionMismatch, header[1], dim)
	}

	count := int(header[2])
	vectors := make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(gz, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: vector artifact truncated at row %d: %v", domain.ErrIndexCorruption, i, err)
		}
		vectors = append(vectors, v)
	}

	idx, err := index.NewFlat(dim)
	if err != nil {
		return nil, err
	}
	if _, err := idx.Add(vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
