package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

var strmUnsafe = regexp.MustCompile(`[<>:"/\\|?*]`)

func sanitizeName(s string) string {
	s = strmUnsafe.ReplaceAllString(s, "_")
	return strings.TrimSpace(s)
}

// qualitySuffix extracts a coarse quality tag ("4K", "1080p", "HD")
// from a title for the optional filename suffix, falling back to empty
// when none is recognizable.
func qualitySuffix(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "2160p") || strings.Contains(lower, "4k"):
		return "4K"
	case strings.Contains(lower, "1080p"):
		return "1080p"
	case strings.Contains(lower, "720p") || strings.Contains(lower, "hd"):
		return "HD"
	default:
		return ""
	}
}

// strmPath computes the .strm file's path under dir for c, honoring
// PerCategoryDir/PerShowDir/QualitySuffix.
func strmPath(dir string, c catalogmodel.Channel, cfg config.StrmOutputConfig) string {
	base := dir
	if cfg.PerCategoryDir && c.Group != "" {
		base = filepath.Join(base, sanitizeName(c.Group))
	}
	if cfg.PerShowDir && c.ItemType == catalogmodel.ItemSeries {
		show := c.Name
		if s, ok := c.AdditionalProperties["series_name"]; ok && s != "" {
			show = s
		}
		base = filepath.Join(base, sanitizeName(show))
	}
	name := sanitizeName(c.Title)
	if cfg.QualitySuffix {
		if q := qualitySuffix(c.Title); q != "" {
			name += " [" + q + "]"
		}
	}
	return filepath.Join(base, fmt.Sprintf("%s.strm", name))
}

// WriteSTRM writes one .strm file per channel under dir, each
// containing the single line streamURL(c) returns. When cfg.Cleanup is
// set, any .strm file under dir not among the paths just written is
// removed, per spec §4.8 ("deletes entries no longer in the catalog
// when cleanup is set").
func WriteSTRM(dir string, channels []catalogmodel.Channel, cfg config.StrmOutputConfig, streamURL StreamURLFunc) error {
	want := make(map[string]bool, len(channels))
	for _, c := range channels {
		path := strmPath(dir, c, cfg)
		want[path] = true
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("emit: strm mkdir: %w", err)
		}
		if err := atomicWriteFile(path, []byte(streamURL(c)+"\n")); err != nil {
			return fmt.Errorf("emit: strm write %s: %w", path, err)
		}
	}
	if cfg.Cleanup {
		if err := cleanupStaleSTRM(dir, want); err != nil {
			return err
		}
	}
	return nil
}

func cleanupStaleSTRM(dir string, want map[string]bool) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".strm") && !want[path] {
			_ = os.Remove(path)
		}
		return nil
	})
}

func atomicWriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".strm-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
