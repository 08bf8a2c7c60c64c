// File: pkg/serialize/binary.go
package serialize

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is how much of a file is inspected for NUL bytes.
const sniffLen = 512

// BinaryExtensions lists extensions, lower-case with a leading dot, that are
// treated as binary without reading the file.
var BinaryExtensions = map[string]bool{
	// images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".tif": true, ".tiff": true, ".webp": true, ".psd": true, ".icns": true, ".heic": true,
	// audio and video
	".mp3": true, ".mp4": true, ".wav": true, ".flac": true, ".ogg": true, ".avi": true,
	".mov": true, ".mkv": true, ".webm": true, ".m4a": true, ".aac": true,
	// archives
	".zip": true, ".tar": true, ".gz": true, ".tgz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".zst": true, ".jar": true, ".war": true,
	// executables and objects
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".o": true, ".a": true,
	".lib": true, ".obj": true, ".bin": true, ".class": true, ".pyc": true, ".pyo": true,
	".wasm": true, ".rlib": true,
	// documents
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".pptx": true, ".odt": true,
	// fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// data
	".db": true, ".sqlite": true, ".sqlite3": true, ".dat": true, ".iso": true, ".img": true,
	".dmg": true, ".parquet": true,
}

// IsBinary reports whether a file should be treated as binary. Known
// extensions, built in or supplied by the user, are decided without opening
// the file; otherwise the first 512 bytes are scanned for a NUL byte.
// Failing to open or read the file is returned as an error.
func IsBinary(path string, userExtensions []string) (bool, error) {
	if isBinaryExtension(path, userExtensions) {
		return true, nil
	}
	return isBinaryFile(path)
}

// isBinaryExtension checks the built-in set and the user list. User entries
// may omit the leading dot.
func isBinaryExtension(path string, userExtensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	if BinaryExtensions[ext] {
		return true
	}
	for _, u := range userExtensions {
		if strings.ToLower(strings.TrimPrefix(u, ".")) == ext[1:] {
			return true
		}
	}
	return false
}

// isBinaryFile checks whether the first bytes of a file contain a NUL.
func isBinaryFile(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return bytes.IndexByte(buffer[:n], 0) >= 0, nil
}
