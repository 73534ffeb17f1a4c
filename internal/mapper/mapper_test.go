package mapper

import (
	"regexp"
	"testing"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/filter"
)

func TestApplyAssignSeesPriorMutation(t *testing.T) {
	script := Script{Stmts: []Stmt{
		Assign(filter.FieldTitle, Literal("Renamed")),
		Assign(filter.FieldName, FieldRef(filter.FieldTitle)),
	}}
	c := &catalogmodel.Channel{Title: "Original", Name: "Original"}
	Apply(script, c, false)
	if c.Title != "Renamed" {
		t.Fatalf("Title = %q", c.Title)
	}
	if c.Name != "Renamed" {
		t.Fatalf("Name should see the prior statement's mutation, got %q", c.Name)
	}
}

func TestApplyGuardGatesAssignment(t *testing.T) {
	sportRe, _ := filter.FieldRegex(filter.FieldGroup, "^Sport", false)
	script := Script{Stmts: []Stmt{
		Guard(sportRe, Assign(filter.FieldCaption, Literal("SPORTS"))),
	}}

	sports := &catalogmodel.Channel{Group: "Sports", Title: "orig"}
	Apply(script, sports, false)
	if sports.Title != "SPORTS" {
		t.Fatalf("expected guarded assignment to apply, got %q", sports.Title)
	}

	news := &catalogmodel.Channel{Group: "News", Title: "orig"}
	Apply(script, news, false)
	if news.Title != "orig" {
		t.Fatalf("expected guarded assignment to skip, got %q", news.Title)
	}
}

func TestApplyRegexReplace(t *testing.T) {
	re := regexp.MustCompile(`^\[4K\]\s*`)
	script := Script{Stmts: []Stmt{
		Assign(filter.FieldTitle, RegexReplace(FieldRef(filter.FieldTitle), re, "")),
	}}
	c := &catalogmodel.Channel{Title: "[4K] Some Channel"}
	Apply(script, c, false)
	if c.Title != "Some Channel" {
		t.Fatalf("Title = %q", c.Title)
	}
}

func TestApplyCounterMonotonic(t *testing.T) {
	counter := &Counter{Value: 100, Step: 1}
	script := Script{Stmts: []Stmt{
		Assign(filter.FieldName, CounterNext(counter, "")),
	}}
	c1 := &catalogmodel.Channel{}
	c2 := &catalogmodel.Channel{}
	Apply(script, c1, false)
	Apply(script, c2, false)
	if c1.Name != "100" || c2.Name != "101" {
		t.Fatalf("got %q, %q", c1.Name, c2.Name)
	}
}

func TestApplyConcat(t *testing.T) {
	script := Script{Stmts: []Stmt{
		Assign(filter.FieldTitle, Concat(Literal("["), FieldRef(filter.FieldGroup), Literal("] "), FieldRef(filter.FieldTitle))),
	}}
	c := &catalogmodel.Channel{Group: "Sports", Title: "Game"}
	Apply(script, c, false)
	if c.Title != "[Sports] Game" {
		t.Fatalf("Title = %q", c.Title)
	}
}
