package atomlog

import (
	"context"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
)

const (
	// logDirName is the directory under the log id holding commit objects
	logDirName string = "_log"
	// tempDirName is the directory under logDirName holding staged objects
	tempDirName string = ".tmp"
	// recordExtension is the extension of commit objects
	recordExtension string = ".rec"
)

// canonicalPathFor builds the deterministic path of the canonical object for
// (logID, version). Versions are zero padded so a listing of the log prefix
// sorts versionwise
func canonicalPathFor(logID string, version uint64) string {
	return path.Join(logID, logDirName, fmt.Sprintf("%020d%s", version, recordExtension))
}

// tempPathFor builds a staged object path unique per claim attempt
func tempPathFor(logID string, version uint64) string {
	return path.Join(logID, logDirName, tempDirName, fmt.Sprintf("%020d.%s%s", version, uuid.NewString(), recordExtension))
}

// logPrefixFor returns the object store prefix holding all canonical objects of logID
func logPrefixFor(logID string) string {
	return path.Join(logID, logDirName) + "/"
}

// encodeUint64ToBytes permits to encode a version as a big endian key
// so ordered key/value stores iterate versions in numeric order
func encodeUint64ToBytes(value uint64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)
	return buffer
}

// decodeUint64FromBytes is the reverse operation of encodeUint64ToBytes
func decodeUint64FromBytes(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}

// createDirectoryIfNotExist permits to check if a directory exist
// and create it if not. An error will be return if there is any
func createDirectoryIfNotExist(d string, perm fs.FileMode) error {
	if _, err := os.Stat(d); os.IsNotExist(err) {
		return os.MkdirAll(d, perm)
	}
	return nil
}

// backoffDuration computes the exponential backoff to apply before the
// provided retry attempt, with a small jitter to spread competing writers
func backoffDuration(base time.Duration, attempt uint) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	d := base << min(attempt, 6)
	return d + time.Duration(rand.Int63n(int64(base)))
}

// sleepContext waits for the provided duration unless ctx is done first
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
