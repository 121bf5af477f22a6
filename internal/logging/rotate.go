package logging

import (
	"bytes"
	"os"
)

// RotateLogFile trims roughly the oldest tenth of path when it exceeds maxMB
// megabytes. The cut happens after a newline so the file keeps starting on a
// whole line. Errors are ignored; a log that cannot be trimmed just grows.
func RotateLogFile(path string, maxMB int) {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= int64(maxMB)*1024*1024 {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	cut := len(data) / 10
	if idx := bytes.IndexByte(data[cut:], '\n'); idx >= 0 {
		cut += idx + 1
	} else {
		cut = len(data)
	}

	_ = os.WriteFile(path, data[cut:], 0o644)
}
