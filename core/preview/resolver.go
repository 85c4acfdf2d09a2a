package preview

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver 把媒体句柄解析为本地文件路径
type Resolver func(sourceRef string) (string, error)

// DirResolver 把相对句柄解析到媒体目录下，拒绝越出目录的路径。
// 绝对路径和 file:// 句柄原样使用。
func DirResolver(dir string) Resolver {
	root := filepath.Clean(dir)
	return func(sourceRef string) (string, error) {
		ref := strings.TrimPrefix(sourceRef, "file://")
		if ref == "" {
			return "", fmt.Errorf("empty source reference")
		}
		if filepath.IsAbs(ref) {
			return filepath.Clean(ref), nil
		}
		full := filepath.Join(root, ref)
		rel, err := filepath.Rel(root, full)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("source %q escapes media directory", sourceRef)
		}
		return full, nil
	}
}

// SourceRefFor 由媒体目录下的文件路径反推句柄，与 DirResolver 互逆
func SourceRefFor(dir, path string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
