package emit

import (
	"log"
	"strconv"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

// PlexDVRMaxChannels is Plex's per-tuner channel limit when using the
// "add tuner" wizard; exceeding it causes "failed to save channel
// lineup" in Plex's UI, so lineup.json is capped at this count by
// default.
const PlexDVRMaxChannels = 480

// NoLineupCap disables the lineup cap.
const NoLineupCap = -1

// LineupItem is one lineup.json entry (spec §6's HDHomeRun interface).
type LineupItem struct {
	GuideNumber string `json:"GuideNumber"`
	GuideName   string `json:"GuideName"`
	URL         string `json:"URL"`
}

// Lineup builds a device's lineup.json body from target's Live
// cluster, capped at maxChannels (PlexDVRMaxChannels when <= 0, no cap
// when NoLineupCap). Channels beyond the cap are dropped from the end,
// logging how many were stripped.
func Lineup(channels []catalogmodel.Channel, maxChannels int, streamURL StreamURLFunc) []LineupItem {
	if maxChannels != NoLineupCap {
		max := maxChannels
		if max <= 0 {
			max = PlexDVRMaxChannels
		}
		if len(channels) > max {
			log.Printf("emit: hdhomerun lineup capped at %d channels (catalog has %d; excess stripped from end)", max, len(channels))
			channels = channels[:max]
		}
	}
	out := make([]LineupItem, 0, len(channels))
	for _, c := range channels {
		out = append(out, LineupItem{
			GuideNumber: strconv.FormatUint(uint64(c.VirtualID), 10),
			GuideName:   c.Name,
			URL:         streamURL(c),
		})
	}
	return out
}
