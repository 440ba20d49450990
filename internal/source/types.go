package source

type (
	// FileID uniquely identifies a loaded container within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a loaded container.
	FileFlags uint8
)

const (
	// FileVirtual indicates the bytes were added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota
	// FileInflated indicates Content is the decompressed form of the bytes on disk.
	FileInflated
)

// File captures the immutable bytes of one container.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	Hash    [32]byte
	Flags   FileFlags
}
