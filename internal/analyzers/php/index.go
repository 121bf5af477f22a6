package php

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Index is the project's class table. It stands in for runtime reflection:
// declared parameter and return types, source location and method syntax
// trees all come from here. Parsed files are kept in memory and re-parsed
// when their modification time changes or the entry outlives ttl.
type Index struct {
	mu      sync.RWMutex
	ttl     time.Duration
	files   map[string]*File
	classes map[string]*ClassInfo // lower-cased FQCN -> class
	byShort map[string][]*ClassInfo
	now     func() time.Time
}

// NewIndex creates an empty index. A zero ttl keeps parsed files until their
// mtime changes.
func NewIndex(ttl time.Duration) *Index {
	return &Index{
		ttl:     ttl,
		files:   make(map[string]*File),
		classes: make(map[string]*ClassInfo),
		byShort: make(map[string][]*ClassInfo),
		now:     time.Now,
	}
}

// LoadPaths indexes every PHP file below the given roots. Missing roots are
// skipped; unreadable or unparsable files are reported in the returned
// warnings and otherwise ignored.
func (ix *Index) LoadPaths(roots ...string) ([]string, error) {
	var warnings []string

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return warnings, fmt.Errorf("error accessing path %s: %w", root, err)
		}

		if !info.IsDir() {
			if _, err := ix.File(root); err != nil {
				warnings = append(warnings, err.Error())
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				base := filepath.Base(path)
				// Skip common directories that shouldn't be indexed
				if path != root && (base == "vendor" || base == "node_modules" ||
					base == "storage" || base == "public" || strings.HasPrefix(base, ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".php") {
				return nil
			}
			if _, err := ix.File(path); err != nil {
				warnings = append(warnings, err.Error())
			}
			return nil
		})
		if err != nil {
			return warnings, fmt.Errorf("error walking directory %s: %w", root, err)
		}
	}

	return warnings, nil
}

// File returns the parsed file, re-parsing it when it changed on disk
func (ix *Index) File(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	ix.mu.RLock()
	cached, ok := ix.files[path]
	ix.mu.RUnlock()
	if ok && cached.ModTime.Equal(info.ModTime()) && !ix.expired(cached) {
		return cached, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := ParseFile(path, content)
	if err != nil {
		return nil, err
	}
	f.ModTime = info.ModTime()
	f.parsedAt = ix.now()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if old, ok := ix.files[path]; ok {
		ix.unregister(old)
	}
	ix.files[path] = f
	for _, class := range f.Classes {
		ix.classes[strings.ToLower(class.FullName)] = class
		short := strings.ToLower(class.Name)
		ix.byShort[short] = append(ix.byShort[short], class)
	}
	return f, nil
}

func (ix *Index) expired(f *File) bool {
	return ix.ttl > 0 && ix.now().Sub(f.parsedAt) > ix.ttl
}

func (ix *Index) unregister(f *File) {
	for _, class := range f.Classes {
		key := strings.ToLower(class.FullName)
		if ix.classes[key] == class {
			delete(ix.classes, key)
		}
		short := strings.ToLower(class.Name)
		list := ix.byShort[short][:0]
		for _, c := range ix.byShort[short] {
			if c != class {
				list = append(list, c)
			}
		}
		if len(list) == 0 {
			delete(ix.byShort, short)
		} else {
			ix.byShort[short] = list
		}
	}
}

// Class looks up a class by fully qualified name (case-insensitive, leading
// backslash optional). The backing file is re-parsed if it changed.
func (ix *Index) Class(fqcn string) *ClassInfo {
	key := strings.ToLower(strings.TrimPrefix(fqcn, `\`))
	ix.mu.RLock()
	class := ix.classes[key]
	ix.mu.RUnlock()
	if class == nil {
		return nil
	}

	f, err := ix.File(class.FilePath)
	if err != nil {
		return nil
	}
	for _, c := range f.Classes {
		if strings.EqualFold(c.FullName, class.FullName) {
			return c
		}
	}
	return nil
}

// Exists reports whether the class is indexed
func (ix *Index) Exists(fqcn string) bool {
	return ix.Class(fqcn) != nil
}

// FindByShortName returns every indexed class with the given short name
func (ix *Index) FindByShortName(name string) []*ClassInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	list := ix.byShort[strings.ToLower(name)]
	out := make([]*ClassInfo, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

// Classes returns all indexed classes sorted by name
func (ix *Index) Classes() []*ClassInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*ClassInfo, 0, len(ix.classes))
	for _, c := range ix.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

// Method finds a method on the class or its indexed ancestors
func (ix *Index) Method(fqcn, name string) *MethodInfo {
	seen := map[string]bool{}
	for class := ix.Class(fqcn); class != nil; class = ix.Class(class.Extends) {
		if seen[class.FullName] {
			break
		}
		seen[class.FullName] = true
		if m := class.Method(name); m != nil {
			return m
		}
		if class.Extends == "" {
			break
		}
	}
	return nil
}

// Ancestors returns the class's parent chain, including vendor parents that
// are not indexed (those end the chain).
func (ix *Index) Ancestors(fqcn string) []string {
	var chain []string
	seen := map[string]bool{}
	class := ix.Class(fqcn)
	for class != nil && class.Extends != "" && !seen[class.Extends] {
		seen[class.Extends] = true
		chain = append(chain, class.Extends)
		class = ix.Class(class.Extends)
	}
	return chain
}

// IsSubclassOf reports whether fqcn extends base. A base given as a short
// name matches any ancestor with that short name.
func (ix *Index) IsSubclassOf(fqcn, base string) bool {
	base = strings.TrimPrefix(base, `\`)
	qualified := strings.Contains(base, `\`)
	for _, parent := range ix.Ancestors(fqcn) {
		if strings.EqualFold(parent, base) {
			return true
		}
		if !qualified && strings.EqualFold(ShortName(parent), base) {
			return true
		}
	}
	return false
}

// UsesTrait reports whether the class or one of its ancestors uses trait
// (matched by short name or FQCN).
func (ix *Index) UsesTrait(fqcn, trait string) bool {
	trait = strings.TrimPrefix(trait, `\`)
	candidates := append([]string{strings.TrimPrefix(fqcn, `\`)}, ix.Ancestors(fqcn)...)
	for _, name := range candidates {
		class := ix.Class(name)
		if class == nil {
			continue
		}
		for _, used := range class.Uses {
			if strings.EqualFold(used, trait) || strings.EqualFold(ShortName(used), trait) {
				return true
			}
		}
	}
	return false
}

// Implements reports whether the class or an ancestor implements iface
func (ix *Index) Implements(fqcn, iface string) bool {
	iface = strings.TrimPrefix(iface, `\`)
	candidates := append([]string{strings.TrimPrefix(fqcn, `\`)}, ix.Ancestors(fqcn)...)
	for _, name := range candidates {
		class := ix.Class(name)
		if class == nil {
			continue
		}
		for _, impl := range class.Implements {
			if strings.EqualFold(impl, iface) || strings.EqualFold(ShortName(impl), iface) {
				return true
			}
		}
	}
	return false
}

// ModTime returns the modification time of the file declaring fqcn
func (ix *Index) ModTime(fqcn string) (time.Time, bool) {
	class := ix.Class(fqcn)
	if class == nil {
		return time.Time{}, false
	}
	info, err := os.Stat(class.FilePath)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
