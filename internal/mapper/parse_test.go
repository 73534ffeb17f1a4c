package mapper

import (
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

func TestParseAssignLiteral(t *testing.T) {
	script, err := Parse(`title := "Fixed Title"`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := &catalogmodel.Channel{Title: "Old"}
	Apply(*script, c, false)
	if c.Title != "Fixed Title" {
		t.Fatalf("title = %q", c.Title)
	}
}

func TestParseConcatAndFieldRef(t *testing.T) {
	script, err := Parse(`title := "[" + group + "] " + title`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := &catalogmodel.Channel{Group: "Sports", Title: "Channel 1"}
	Apply(*script, c, false)
	if c.Title != "[Sports] Channel 1" {
		t.Fatalf("title = %q", c.Title)
	}
}

func TestParseRegexReplace(t *testing.T) {
	script, err := Parse(`name := regex_replace(name, "HD$", "")`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := &catalogmodel.Channel{Name: "BBC OneHD"}
	Apply(*script, c, false)
	if c.Name != "BBC One" {
		t.Fatalf("name = %q", c.Name)
	}
}

func TestParseCounterMonotonicAcrossApplyCalls(t *testing.T) {
	script, err := Parse(`name := "ch-" + counter(seq, 100, 1)`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c1 := &catalogmodel.Channel{}
	c2 := &catalogmodel.Channel{}
	Apply(*script, c1, false)
	Apply(*script, c2, false)
	if c1.Name != "ch-100" || c2.Name != "ch-101" {
		t.Fatalf("names = %q, %q", c1.Name, c2.Name)
	}
}

func TestParseGuardedAssignment(t *testing.T) {
	script, err := Parse(`IF (Group ~ "Sports.*") THEN title := "Live Sports"`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sports := &catalogmodel.Channel{Group: "Sports HD", Title: "Channel"}
	Apply(*script, sports, false)
	if sports.Title != "Live Sports" {
		t.Fatalf("sports title = %q", sports.Title)
	}
	news := &catalogmodel.Channel{Group: "News", Title: "Channel"}
	Apply(*script, news, false)
	if news.Title != "Channel" {
		t.Fatalf("news title should be untouched, got %q", news.Title)
	}
}

func TestParseBlankAndCommentLinesIgnored(t *testing.T) {
	script, err := Parse("\n# a comment\ntitle := \"X\"\n\n", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(script.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(script.Stmts))
	}
}

func TestParseUnknownFieldErrors(t *testing.T) {
	if _, err := Parse(`bogus := "x"`, false); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
