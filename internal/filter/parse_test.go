package filter

import (
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
)

func mkChan(group, name string, it catalogmodel.ItemType) *catalogmodel.Channel {
	return &catalogmodel.Channel{Group: group, Name: name, Title: name, ItemType: it}
}

func TestParseSimpleFieldRegex(t *testing.T) {
	f, err := Parse(`Group ~ "Sports.*"`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !Eval(f, mkChan("Sports HD", "x", catalogmodel.ItemLive), false) {
		t.Fatalf("expected match")
	}
	if Eval(f, mkChan("News", "x", catalogmodel.ItemLive), false) {
		t.Fatalf("expected no match")
	}
}

func TestParseAndOrPrecedence(t *testing.T) {
	f, err := Parse(`Type = "live" AND Group ~ "Sports.*" OR Type = "movie"`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sportsLive := mkChan("Sports HD", "x", catalogmodel.ItemLive)
	if !Eval(f, sportsLive, false) {
		t.Fatalf("expected sports live to match")
	}
	movie := mkChan("Anything", "x", catalogmodel.ItemVideo)
	if !Eval(f, movie, false) {
		t.Fatalf("expected movie to match via OR clause")
	}
	newsLive := mkChan("News", "x", catalogmodel.ItemLive)
	if Eval(f, newsLive, false) {
		t.Fatalf("expected non-sports live to not match")
	}
}

func TestParseNotAndParens(t *testing.T) {
	f, err := Parse(`NOT (Group ~ "Kids.*")`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if Eval(f, mkChan("Kids Channel", "x", catalogmodel.ItemLive), false) {
		t.Fatalf("expected NOT to exclude Kids group")
	}
	if !Eval(f, mkChan("News", "x", catalogmodel.ItemLive), false) {
		t.Fatalf("expected non-Kids group to match")
	}
}

func TestParseGroupKeyword(t *testing.T) {
	f, err := Parse(`GROUP(Name ~ "BBC.*")`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Kind != KindGroup {
		t.Fatalf("expected top-level Group node, got %v", f.Kind)
	}
	if !Eval(f, mkChan("x", "BBC One", catalogmodel.ItemLive), false) {
		t.Fatalf("expected match")
	}
}

func TestParseUnknownFieldErrors(t *testing.T) {
	if _, err := Parse(`Bogus ~ "x"`, false); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseMismatchedParenErrors(t *testing.T) {
	if _, err := Parse(`(Group ~ "x"`, false); err == nil {
		t.Fatalf("expected error for unclosed paren")
	}
}

func TestParseEscapedQuoteInRegex(t *testing.T) {
	f, err := Parse(`Title ~ "say \"hi\""`, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !Eval(f, mkChan("x", `say "hi"`, catalogmodel.ItemLive), false) {
		t.Fatalf("expected escaped-quote regex to match literal quotes")
	}
}
