package process

import (
	"regexp"
	"sort"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/config"
)

// sortChannels orders channels by group, then by channel within each
// group, per cfg. Channels are grouped by their Group field, each group
// keeping the relative order its first member appeared in.
func sortChannels(channels []catalogmodel.Channel, cfg config.SortConfig) []catalogmodel.Channel {
	if len(channels) == 0 {
		return channels
	}

	var groupTitles []string
	groups := map[string][]catalogmodel.Channel{}
	for _, c := range channels {
		if _, ok := groups[c.Group]; !ok {
			groupTitles = append(groupTitles, c.Group)
		}
		groups[c.Group] = append(groups[c.Group], c)
	}

	orderedTitles := orderGroups(groupTitles, cfg.Groups)

	channelRules := compileChannelRules(cfg.Channels)

	out := make([]catalogmodel.Channel, 0, len(channels))
	for _, title := range orderedTitles {
		members := groups[title]
		rule := matchingChannelRule(channelRules, title)
		if rule != nil {
			members = orderChannels(members, rule)
		}
		out = append(out, members...)
	}
	return out
}

// orderGroups decides the order in which group titles are emitted. With
// no configuration groups stay in first-seen order. A Sequence of regex
// patterns ranks groups by the first pattern they match, in pattern
// order; unmatched groups trail, in first-seen order among themselves.
// Otherwise Order picks a plain lexicographic ascending or descending
// sort of the group titles.
func orderGroups(titles []string, cfg *config.SortGroupConfig) []string {
	if cfg == nil {
		return titles
	}
	out := append([]string(nil), titles...)

	if len(cfg.Sequence) > 0 {
		patterns := compileAll(cfg.Sequence)
		sort.SliceStable(out, func(i, j int) bool {
			ri, mi := rankBySequence(out[i], patterns)
			rj, mj := rankBySequence(out[j], patterns)
			if mi != mj {
				return mi
			}
			return ri < rj
		})
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if cfg.Order == "desc" {
			return out[i] > out[j]
		}
		return out[i] < out[j]
	})
	return out
}

// orderChannels applies one SortChannelConfig rule's field ordering to
// members of a single group.
func orderChannels(members []catalogmodel.Channel, rule *config.SortChannelConfig) []catalogmodel.Channel {
	out := append([]catalogmodel.Channel(nil), members...)

	if len(rule.Sequence) > 0 {
		patterns := compileAll(rule.Sequence)
		sort.SliceStable(out, func(i, j int) bool {
			vi := channelFieldValue(rule.Field, &out[i])
			vj := channelFieldValue(rule.Field, &out[j])
			ri, mi := rankBySequence(vi, patterns)
			rj, mj := rankBySequence(vj, patterns)
			if mi != mj {
				return mi
			}
			return ri < rj
		})
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi := channelFieldValue(rule.Field, &out[i])
		vj := channelFieldValue(rule.Field, &out[j])
		if rule.Order == "desc" {
			return vi > vj
		}
		return vi < vj
	})
	return out
}

// matchingChannelRule returns the first rule whose GroupPattern matches
// groupTitle, or one with no GroupPattern, applying to every group.
func matchingChannelRule(rules []compiledChannelRule, groupTitle string) *config.SortChannelConfig {
	for i := range rules {
		if rules[i].groupRe == nil || rules[i].groupRe.MatchString(groupTitle) {
			return &rules[i].rule
		}
	}
	return nil
}

type compiledChannelRule struct {
	rule    config.SortChannelConfig
	groupRe *regexp.Regexp
}

func compileChannelRules(rules []config.SortChannelConfig) []compiledChannelRule {
	out := make([]compiledChannelRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledChannelRule{rule: r}
		if r.GroupPattern != "" {
			if re, err := regexp.Compile(r.GroupPattern); err == nil {
				cr.groupRe = re
			}
		}
		out = append(out, cr)
	}
	return out
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// rankBySequence returns the index of the first pattern matching value
// and true, or (0, false) if none match.
func rankBySequence(value string, patterns []*regexp.Regexp) (int, bool) {
	for i, re := range patterns {
		if re != nil && re.MatchString(value) {
			return i, true
		}
	}
	return 0, false
}

func channelFieldValue(field string, c *catalogmodel.Channel) string {
	switch field {
	case "group":
		return c.Group
	case "name":
		return c.Name
	case "title":
		return c.Title
	case "url":
		return c.URL
	default:
		return ""
	}
}
