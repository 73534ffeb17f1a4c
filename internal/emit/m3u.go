// Package emit turns a target's persisted catalog clusters into the
// four output shapes spec.md §4.8 lists: Xtream JSON, M3U playlist
// text, an HDHomeRun lineup, and one .strm file per VOD/series item.
// Every emitter reads from the catalog repository at request/write
// time; none keeps its own copy of the data.
package emit

import (
	"fmt"
	"strings"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

// StreamURLFunc builds the URL a given channel should be played at,
// applying proxy-mode/redirect-masking decisions the caller already
// resolved; emitters never construct stream URLs themselves.
type StreamURLFunc func(c catalogmodel.Channel) string

// WriteM3U renders target's Live cluster as a standard #EXTM3U
// playlist (spec §6's "M3U format"): one #EXTINF line per channel
// followed by its stream URL.
func WriteM3U(w *strings.Builder, channels []catalogmodel.Channel, cfg config.M3UOutputConfig, streamURL StreamURLFunc) {
	w.WriteString("#EXTM3U\n")
	for _, c := range channels {
		extType := ""
		if cfg.IncludeType {
			extType = fmt.Sprintf(` tvg-type="%s"`, c.ItemType)
		}
		fmt.Fprintf(w, `#EXTINF:-1 tvg-id="%s" tvg-name="%s" tvg-logo="%s" group-title="%s"%s,%s`+"\n",
			escapeAttr(c.EPGChannelID), escapeAttr(c.Name), escapeAttr(c.Logo), escapeAttr(c.Group), extType, c.Title)
		w.WriteString(streamURL(c))
		w.WriteString("\n")
	}
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, `"`, `'`)
	return s
}
