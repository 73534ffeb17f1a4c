//go:build linux
// +build linux

package vodfs

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// MovieDirName returns the Plex movie folder name: "MovieName (Year)".
func MovieDirName(title string, year int) string {
	title = safeFSName(title)
	if year > 0 {
		return fmt.Sprintf("%s (%d)", title, year)
	}
	return title
}

// MovieFileName returns the Plex movie file name: "MovieName (Year).mp4".
func MovieFileName(title string, year int) string {
	return MovieDirName(title, year) + ".mp4"
}

// MovieFileNameForStream returns a Plex movie file name using a source-informed extension when possible.
func MovieFileNameForStream(title string, year int, streamURL string) string {
	return MovieDirName(title, year) + VODFileExt(streamURL)
}

// ShowDirName returns the Plex TV show folder name: "Show Name (Year)".
func ShowDirName(title string, year int) string {
	title = safeFSName(title)
	if year > 0 {
		return fmt.Sprintf("%s (%d)", title, year)
	}
	return title
}

// EpisodeFileName returns the episode file name: "Show Name - Episode Title.mp4".
// The catalog carries series episodes as flat channels with no
// season/episode numbering, so unlike the teacher's Plex-DVR naming
// there is no "s01e01" component; the channel's own title is what
// distinguishes episodes within a show.
func EpisodeFileName(showTitle string, showYear int, episodeTitle string) string {
	show := ShowDirName(showTitle, showYear)
	episodeTitle = safeFSName(episodeTitle)
	if episodeTitle != "" && episodeTitle != show {
		return fmt.Sprintf("%s - %s.mp4", show, episodeTitle)
	}
	return show + ".mp4"
}

// EpisodeFileNameForStream returns an episode file name using a source-informed extension when possible.
func EpisodeFileNameForStream(showTitle string, showYear int, episodeTitle, streamURL string) string {
	show := ShowDirName(showTitle, showYear)
	episodeTitle = safeFSName(episodeTitle)
	ext := VODFileExt(streamURL)
	if episodeTitle != "" && episodeTitle != show {
		return fmt.Sprintf("%s - %s%s", show, episodeTitle, ext)
	}
	return show + ext
}

// VODFileExt returns the best-effort media extension to expose in VODFS based on source URL.
// We preserve common direct-file extensions (e.g. .mkv) so Plex doesn't see mismatched bytes vs filename.
// HLS/unknown sources default to .mp4 because the materializer remux path writes MP4.
func VODFileExt(streamURL string) string {
	if streamURL == "" {
		return ".mp4"
	}
	u, err := url.Parse(streamURL)
	if err != nil {
		return ".mp4"
	}
	ext := strings.ToLower(filepath.Ext(u.Path))
	switch ext {
	case ".mp4", ".m4v", ".mkv", ".webm", ".mov", ".avi", ".ts":
		return ext
	case ".m3u8":
		return ".mp4"
	default:
		return ".mp4"
	}
}

// SafeBase returns a filesystem-safe base name (no path separators or nulls).
func SafeBase(name string) string {
	return safeFSName(filepath.Base(name))
}

func safeFSName(name string) string {
	if name == "" {
		return ""
	}
	// FUSE directory entries cannot contain path separators or NUL bytes.
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "/", " - ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "_"
	}
	return name
}
