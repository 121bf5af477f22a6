package contract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Load reads a contract artifact. A missing file yields an error satisfying
// os.IsNotExist / errors.Is(err, fs.ErrNotExist).
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract %s: %w", path, err)
	}
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse contract %s: %w", path, err)
	}
	return c, nil
}

// Encode renders the artifact as indented UTF-8 JSON with slashes and HTML
// characters left unescaped.
func Encode(c *Contract) ([]byte, error) {
	raw, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Write stores the artifact at path, creating parent directories. The file is
// replaced atomically.
func Write(path string, c *Contract) error {
	data, err := Encode(c)
	if err != nil {
		return fmt.Errorf("failed to encode contract: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".contract-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write contract: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write contract: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write contract: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move contract into place: %w", err)
	}
	return nil
}

// ArchiveName returns the versioned file name for an artifact written at t,
// e.g. api-2024-05-01-134501.json
func ArchiveName(outputPath string, t time.Time) string {
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	return fmt.Sprintf("%s-%s.json", base, t.Format("2006-01-02-150405"))
}

// Archive copies an existing artifact into versionsDir. It returns the
// archive path, or "" when there was nothing to archive.
func Archive(outputPath, versionsDir string, now time.Time) (string, error) {
	src, err := os.Open(outputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open previous contract: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(versionsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create versions directory: %w", err)
	}
	dst := filepath.Join(versionsDir, ArchiveName(outputPath, now))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create archive %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to archive contract: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to archive contract: %w", err)
	}
	return dst, nil
}

// GitRevision returns the commit hash HEAD points at in root's repository,
// or "" when root is not a git checkout.
func GitRevision(root string) string {
	gitDir := filepath.Join(root, ".git")
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	ref := strings.TrimSpace(string(head))
	if !strings.HasPrefix(ref, "ref:") {
		return ref // detached HEAD
	}
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "ref:"))

	if data, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref))); err == nil {
		return strings.TrimSpace(string(data))
	}

	packed, err := os.Open(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		return ""
	}
	defer packed.Close()
	scanner := bufio.NewScanner(packed)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		if fields := strings.Fields(line); len(fields) == 2 && fields[1] == ref {
			return fields[0]
		}
	}
	return ""
}

// NewMetadata stamps generation details
func NewMetadata(root string, now time.Time, routeCount int, generator string) *Metadata {
	return &Metadata{
		GeneratedAt:   now.UTC().Format(time.RFC3339),
		GitRevision:   GitRevision(root),
		SchemaVersion: SchemaVersion,
		Generator:     generator,
		RouteCount:    routeCount,
	}
}
