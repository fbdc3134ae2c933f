package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// Snapshot layout inside the index directory:
//
//	CURRENT                 name of the committed manifest file
//	manifest-%08d.json      generation, dimension, count, artifact names
//	vectors-%08d.bin        binary header + float32 little-endian rows
//	meta-%08d.json.gz       gzip JSON array of ChunkMetadata
//
// A generation commits by renaming a temp CURRENT over the old one, after
// both artifacts and the manifest are durable. Readers that crash mid-write
// therefore always see the previous complete pair.
const (
	currentFileName = "CURRENT"

	vectorsMagic   = "HVEC"
	vectorsVersion = uint32(1)
)

type manifest struct {
	Generation   uint64 `json:"generation"`
	Dimension    int    `json:"dimension"`
	Count        int    `json:"count"`
	VectorsFile  string `json:"vectors_file"`
	MetadataFile string `json:"metadata_file"`
}

type snapshot struct {
	generation uint64
	dim        int
	vectors    [][]float32
	metadata   []entities.ChunkMetadata
}

// loadSnapshot reads the committed snapshot, or returns nil when the
// directory holds none. Every inconsistency between the two artifacts is
// entities.ErrIndexIO.
func loadSnapshot(dir string) (*snapshot, error) {
	current, err := os.ReadFile(filepath.Join(dir, currentFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading CURRENT: %v", entities.ErrIndexIO, err)
	}

	manifestName := strings.TrimSpace(string(current))
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest %s: %v", entities.ErrIndexIO, manifestName, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %s: %v", entities.ErrIndexIO, manifestName, err)
	}

	vectors, err := readVectors(filepath.Join(dir, m.VectorsFile), m.Dimension, m.Count)
	if err != nil {
		return nil, err
	}
	metadata, err := readMetadata(filepath.Join(dir, m.MetadataFile))
	if err != nil {
		return nil, err
	}

	if len(metadata) != len(vectors) {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata entries",
			entities.ErrIndexIO, len(vectors), len(metadata))
	}

	return &snapshot{
		generation: m.Generation,
		dim:        m.Dimension,
		vectors:    vectors,
		metadata:   metadata,
	}, nil
}

// writeSnapshot durably writes a new generation and atomically publishes it.
func writeSnapshot(dir string, gen uint64, dim int, vectors [][]float32, metadata []entities.ChunkMetadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating index directory: %v", entities.ErrIndexIO, err)
	}

	vectorsName := fmt.Sprintf("vectors-%08d.bin", gen)
	metaName := fmt.Sprintf("meta-%08d.json.gz", gen)
	manifestName := fmt.Sprintf("manifest-%08d.json", gen)

	if err := writeVectors(filepath.Join(dir, vectorsName), dim, vectors); err != nil {
		return err
	}
	if err := writeMetadata(filepath.Join(dir, metaName), metadata); err != nil {
		return err
	}

	m := manifest{
		Generation:   gen,
		Dimension:    dim,
		Count:        len(vectors),
		VectorsFile:  vectorsName,
		MetadataFile: metaName,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding manifest: %v", entities.ErrIndexIO, err)
	}
	if err := writeFileSync(filepath.Join(dir, manifestName), data); err != nil {
		return err
	}

	// Publish: temp CURRENT, fsync, rename over the committed pointer.
	if err := writeFileSync(filepath.Join(dir, currentFileName+".tmp"), []byte(manifestName)); err != nil {
		return err
	}
	if err := os.Rename(filepath.Join(dir, currentFileName+".tmp"), filepath.Join(dir, currentFileName)); err != nil {
		return fmt.Errorf("%w: publishing CURRENT: %v", entities.ErrIndexIO, err)
	}

	// Previous generations are garbage once CURRENT moved on; reclaim them.
	pruneGenerations(dir, gen)
	return nil
}

func writeVectors(path string, dim int, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(vectorsMagic); err != nil {
		return fmt.Errorf("%w: writing vectors: %v", entities.ErrIndexIO, err)
	}
	header := []uint32{vectorsVersion, uint32(dim), uint32(len(vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: writing vectors header: %v", entities.ErrIndexIO, err)
		}
	}
	for _, vec := range vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("%w: writing vectors: %v", entities.ErrIndexIO, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flushing vectors: %v", entities.ErrIndexIO, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing vectors: %v", entities.ErrIndexIO, err)
	}
	return nil
}

func readVectors(path string, dim, count int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(vectorsMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: reading vectors header: %v", entities.ErrIndexIO, err)
	}
	if string(magic) != vectorsMagic {
		return nil, fmt.Errorf("%w: bad vectors magic %q", entities.ErrIndexIO, magic)
	}

	var version, fileDim, fileCount uint32
	for _, dst := range []*uint32{&version, &fileDim, &fileCount} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: reading vectors header: %v", entities.ErrIndexIO, err)
		}
	}
	if version != vectorsVersion {
		return nil, fmt.Errorf("%w: unsupported vectors version %d", entities.ErrIndexIO, version)
	}
	if int(fileDim) != dim || int(fileCount) != count {
		return nil, fmt.Errorf("%w: vectors header (dim=%d count=%d) disagrees with manifest (dim=%d count=%d)",
			entities.ErrIndexIO, fileDim, fileCount, dim, count)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: reading vector %d: %v", entities.ErrIndexIO, i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func writeMetadata(path string, metadata []entities.ChunkMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(metadata); err != nil {
		return fmt.Errorf("%w: writing metadata: %v", entities.ErrIndexIO, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("%w: closing metadata: %v", entities.ErrIndexIO, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing metadata: %v", entities.ErrIndexIO, err)
	}
	return nil
}

func readMetadata(path string) ([]entities.ChunkMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	defer gz.Close()

	var metadata []entities.ChunkMetadata
	if err := json.NewDecoder(gz).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata: %v", entities.ErrIndexIO, err)
	}
	return metadata, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: writing %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %v", entities.ErrIndexIO, filepath.Base(path), err)
	}
	return nil
}

// pruneGenerations removes artifacts of generations older than keep.
// Best effort: stale files waste space but never affect correctness.
func pruneGenerations(dir string, keep uint64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	suffix := fmt.Sprintf("%08d", keep)
	for _, e := range entries {
		name := e.Name()
		if name == currentFileName || strings.Contains(name, suffix) {
			continue
		}
		if strings.HasPrefix(name, "vectors-") || strings.HasPrefix(name, "meta-") || strings.HasPrefix(name, "manifest-") {
			os.Remove(filepath.Join(dir, name))
		}
	}
}
