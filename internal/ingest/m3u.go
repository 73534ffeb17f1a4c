package ingest

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// ParseM3U parses an #EXTM3U playlist body into catalog channels tagged
// with inputName. Lines are classified live/video/series the same way
// the M3U entry's title and attributes suggest: a season/episode marker
// (SxxEyy) makes it series, a trailing "(YYYY)" or the word "movie" makes
// it video, anything else is live.
func ParseM3U(data []byte, inputName string) ([]catalogmodel.Channel, error) {
	entries, err := scanM3U(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out := make([]catalogmodel.Channel, 0, len(entries))
	for i, e := range entries {
		out = append(out, channelFromEXTINF(e, inputName, i))
	}
	return out, nil
}

type m3uEntry struct {
	extinf  string
	userAgent string
	url     string
}

func scanM3U(r io.Reader) ([]m3uEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var entries []m3uEntry
	var extinf, userAgent string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			extinf, userAgent = line, ""
		case strings.HasPrefix(line, "#EXTVLCOPT:"):
			// #EXTVLCOPT:http-user-agent=...
			if v, ok := strings.CutPrefix(line, "#EXTVLCOPT:http-user-agent="); ok {
				userAgent = strings.TrimSpace(v)
			}
		case strings.HasPrefix(line, "#"):
			// other directive, ignore
		case extinf != "":
			entries = append(entries, m3uEntry{extinf: extinf, userAgent: userAgent, url: line})
			extinf, userAgent = "", ""
		}
	}
	return entries, sc.Err()
}

func channelFromEXTINF(e m3uEntry, inputName string, index int) catalogmodel.Channel {
	title := extinfTitle(e.extinf)
	season, episode, isSeries := seasonEpisode(e.extinf)
	_, year := splitTitleYear(title)

	itemType := catalogmodel.ItemLive
	switch {
	case isSeries:
		itemType = catalogmodel.ItemSeries
	case year > 0 || strings.Contains(strings.ToLower(e.extinf), "movie"):
		itemType = catalogmodel.ItemVideo
	}

	props := map[string]string{}
	if e.userAgent != "" {
		props["http_user_agent"] = e.userAgent
	}
	if isSeries {
		props["season"] = strconv.Itoa(season)
		props["episode"] = strconv.Itoa(episode)
	}
	if len(props) == 0 {
		props = nil
	}

	return catalogmodel.Channel{
		ProviderKey:          inputName,
		ProviderID:           strconv.Itoa(index),
		Name:                 title,
		Title:                title,
		Group:                extinfAttr(e.extinf, "group-title"),
		Logo:                 extinfAttr(e.extinf, "tvg-logo"),
		URL:                  e.url,
		ItemType:             itemType,
		EPGChannelID:         extinfAttr(e.extinf, "tvg-id"),
		AdditionalProperties: props,
		InputName:            inputName,
	}
}

// extinfTitle returns the display title trailing the last comma on an
// #EXTINF line.
func extinfTitle(extinf string) string {
	if i := strings.LastIndex(extinf, ","); i >= 0 {
		return strings.TrimSpace(extinf[i+1:])
	}
	return extinf
}

// splitTitleYear strips a trailing "(YYYY)" from title, returning the
// bare title and the parsed year (0 if absent).
func splitTitleYear(title string) (string, int) {
	title = strings.TrimSpace(title)
	if len(title) < 6 || title[len(title)-1] != ')' {
		return title, 0
	}
	i := strings.LastIndex(title, "(")
	if i < 0 {
		return title, 0
	}
	inner := strings.TrimSpace(title[i+1 : len(title)-1])
	if len(inner) != 4 {
		return title, 0
	}
	year, err := strconv.Atoi(inner)
	if err != nil || year < 1900 || year > 2100 {
		return title, 0
	}
	return strings.TrimSpace(title[:i]), year
}

// seasonEpisode looks for a SxxEyy marker in extinf (case-insensitive).
func seasonEpisode(extinf string) (season, episode int, ok bool) {
	lower := strings.ToLower(extinf)
	for i := 0; i+5 < len(lower); i++ {
		if lower[i] != 's' || lower[i+3] != 'e' {
			continue
		}
		if !isDigit(lower[i+1]) || !isDigit(lower[i+2]) || !isDigit(lower[i+4]) || !isDigit(lower[i+5]) {
			continue
		}
		season = int(lower[i+1]-'0')*10 + int(lower[i+2]-'0')
		episode = int(lower[i+4]-'0')*10 + int(lower[i+5]-'0')
		return season, episode, true
	}
	return 0, 0, false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// extinfAttr extracts a quoted key="value" attribute from an #EXTINF line.
func extinfAttr(extinf, key string) string {
	prefix := key + `="`
	i := strings.Index(extinf, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.Index(extinf[i:], `"`)
	if j < 0 {
		return ""
	}
	return extinf[i : i+j]
}
