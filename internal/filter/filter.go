// Package filter evaluates the boolean expression grammar used by
// target processing rules and mapper guards (spec §4.5): field regex
// matches, item-type equality, and boolean combinators, walked as a
// tagged-union tree rather than dispatched through interfaces.
package filter

import (
	"fmt"
	"regexp"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

// Field names a channel attribute a FieldRegex or TypeEq node matches
// against.
type Field string

const (
	FieldGroup   Field = "group"
	FieldName    Field = "name"
	FieldTitle   Field = "title"
	FieldURL     Field = "url"
	FieldInput   Field = "input"
	FieldType    Field = "type"
	FieldCaption Field = "caption"
)

// Kind tags which case of the filter AST a Filter node is.
type Kind int

const (
	KindGroup Kind = iota
	KindFieldRegex
	KindTypeEq
	KindNot
	KindAnd
	KindOr
)

// Filter is one node of the filter AST. Only the fields relevant to Kind
// are populated; Eval switches on Kind, not on which fields are set.
type Filter struct {
	Kind  Kind
	Inner *Filter // Group, Not
	Left  *Filter // And, Or
	Right *Filter // And, Or

	Field Field          // FieldRegex, TypeEq
	Re    *regexp.Regexp // FieldRegex (compiled)
	Type  string         // TypeEq: "live" | "movie" | "series"
}

// Group wraps a sub-filter for precedence grouping; it evaluates
// identically to its inner filter.
func Group(f *Filter) *Filter { return &Filter{Kind: KindGroup, Inner: f} }

// Not negates f.
func Not(f *Filter) *Filter { return &Filter{Kind: KindNot, Inner: f} }

// And is the conjunction of a and b.
func And(a, b *Filter) *Filter { return &Filter{Kind: KindAnd, Left: a, Right: b} }

// Or is the disjunction of a and b.
func Or(a, b *Filter) *Filter { return &Filter{Kind: KindOr, Left: a, Right: b} }

// FieldRegex matches field against pattern. The pattern is compiled as
// given and asciiFold is not used here; ASCII folding (see Fold) is
// applied to the channel's attribute at match time when Eval is called
// with asciiFold set.
func FieldRegex(field Field, pattern string, asciiFold bool) (*Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("filter: compile %s pattern %q: %w", field, pattern, err)
	}
	return &Filter{Kind: KindFieldRegex, Field: field, Re: re}, nil
}

// TypeEq matches item_type against one of "live", "movie", "series" —
// the three coarse type names the filter grammar exposes, each of which
// maps onto one or more catalogmodel.ItemType values (see typeMatches).
func TypeEq(typeName string) *Filter {
	return &Filter{Kind: KindTypeEq, Field: FieldType, Type: typeName}
}

// Eval walks the AST and reports whether c satisfies f. asciiFold
// controls whether field text is ASCII-folded before matching, mirroring
// the target's match_as_ascii setting.
func Eval(f *Filter, c *catalogmodel.Channel, asciiFold bool) bool {
	if f == nil {
		return true
	}
	switch f.Kind {
	case KindGroup:
		return Eval(f.Inner, c, asciiFold)
	case KindNot:
		return !Eval(f.Inner, c, asciiFold)
	case KindAnd:
		return Eval(f.Left, c, asciiFold) && Eval(f.Right, c, asciiFold)
	case KindOr:
		return Eval(f.Left, c, asciiFold) || Eval(f.Right, c, asciiFold)
	case KindFieldRegex:
		text := fieldValue(f.Field, c)
		if asciiFold {
			text = Fold(text)
		}
		return f.Re.MatchString(text)
	case KindTypeEq:
		return typeMatches(f.Type, c.ItemType)
	default:
		return false
	}
}

func fieldValue(field Field, c *catalogmodel.Channel) string {
	switch field {
	case FieldGroup:
		return c.Group
	case FieldName:
		return c.Name
	case FieldTitle:
		return c.Title
	case FieldURL:
		return c.URL
	case FieldInput:
		return c.InputName
	case FieldType:
		return string(c.ItemType)
	case FieldCaption:
		return c.Title
	default:
		return ""
	}
}

// typeMatches implements the coarse type-name -> item_type cluster
// mapping from spec §4.5: live<->Live, movie<->{Video,LocalVideo},
// series<->{Series,SeriesInfo,LocalSeries,LocalSeriesInfo}.
func typeMatches(typeName string, it catalogmodel.ItemType) bool {
	switch typeName {
	case "live":
		return it == catalogmodel.ItemLive
	case "movie":
		return it == catalogmodel.ItemVideo || it == catalogmodel.ItemLocalVideo
	case "series":
		switch it {
		case catalogmodel.ItemSeries, catalogmodel.ItemSeriesInfo, catalogmodel.ItemLocalSeries, catalogmodel.ItemLocalSeriesInfo:
			return true
		}
		return false
	default:
		return false
	}
}

// Fold ASCII-folds s: common Latin diacritics are transliterated to
// their unaccented base letter, and any remaining rune outside 0-127 is
// dropped. This lets a pattern written in plain ASCII match
// diacritic-bearing provider text under the target's match_as_ascii
// setting.
func Fold(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, r)
			continue
		}
		if base, ok := asciiFoldTable[r]; ok {
			out = append(out, base)
		}
	}
	return string(out)
}

var asciiFoldTable = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a',
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A', 'Ā': 'A',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E', 'Ē': 'E',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I', 'Ī': 'I',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o', 'ō': 'o', 'ø': 'o',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O', 'Ō': 'O', 'Ø': 'O',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U', 'Ū': 'U',
	'ý': 'y', 'ÿ': 'y', 'Ý': 'Y',
	'ñ': 'n', 'Ñ': 'N',
	'ç': 'c', 'Ç': 'C',
	'ß': 's',
}
