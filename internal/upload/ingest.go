package upload

import (
	"errors"
	"io"
	"os"

	"recap/internal/services"
)

const partSuffix = ".part"

// Save streams r to destination in chunkSize increments, enforcing maxBytes.
// Memory use is O(chunkSize) regardless of input size. Content is written to
// destination+".part" and renamed into place only on success; every failure
// path removes the temp file, so no partial file is ever visible at
// destination. Returns the number of bytes written.
func Save(r io.Reader, destination string, maxBytes int64, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		return 0, services.Wrap(services.ErrConfiguration, "upload", "save", "chunk size must be positive", nil)
	}

	tmpPath := destination + partSuffix
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "upload", "open temp file", tmpPath, err)
	}

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			written += int64(n)
			if written > maxBytes {
				discard(out, tmpPath)
				return 0, services.Wrap(services.ErrPayloadTooLarge, "upload", "save", "upload exceeds size ceiling", nil)
			}
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				discard(out, tmpPath)
				return 0, services.Wrap(services.ErrValidation, "upload", "write chunk", "", writeErr)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			discard(out, tmpPath)
			return 0, services.Wrap(services.ErrValidation, "upload", "read stream", "", readErr)
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, services.Wrap(services.ErrValidation, "upload", "flush temp file", "", err)
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		_ = os.Remove(tmpPath)
		return 0, services.Wrap(services.ErrValidation, "upload", "commit", "", err)
	}
	return written, nil
}

func discard(out *os.File, tmpPath string) {
	_ = out.Close()
	_ = os.Remove(tmpPath)
}
