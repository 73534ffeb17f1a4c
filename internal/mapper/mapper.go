// Package mapper interprets mapper scripts (spec §4.5): a sequence of
// field assignments, filter-guarded conditionals, and monotonic counters
// applied to a channel in a single left-to-right pass, with each
// statement's mutation visible to the statements after it.
package mapper

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/iptvgw/gateway/internal/catalogmodel"
	"github.com/iptvgw/gateway/internal/filter"
)

// Counter is a monotonic counter a mapper script can stamp into a field.
// Value is the next value it will hand out; Step is added after each use.
type Counter struct {
	Name  string
	Value int64
	Step  int64
}

// Next returns the counter's current value and advances it by Step.
func (c *Counter) Next() int64 {
	v := c.Value
	c.Value += c.Step
	return v
}

// StmtKind tags which case of a mapper statement a Stmt is.
type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtGuard
)

// Stmt is one statement in a mapper script.
type Stmt struct {
	Kind StmtKind

	// StmtAssign
	Field      filter.Field
	Expr       Expr
	GuardInner *Stmt // StmtGuard: the statement applied when Guard evaluates true

	// StmtGuard
	Guard *filter.Filter
}

// Assign builds a field-assignment statement: field := expr.
func Assign(field filter.Field, expr Expr) Stmt {
	return Stmt{Kind: StmtAssign, Field: field, Expr: expr}
}

// Guard builds a conditional statement: inner only applies when f
// evaluates true against the channel's state at that point in the pass.
func Guard(f *filter.Filter, inner Stmt) Stmt {
	return Stmt{Kind: StmtGuard, Guard: f, GuardInner: &inner}
}

// ExprKind tags which case of a mapper expression an Expr is.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprFieldRef
	ExprRegexReplace
	ExprCounter
	ExprConcat
)

// Expr is a mapper right-hand-side expression, evaluated against a
// channel's current (possibly already-mutated) state.
type Expr struct {
	Kind ExprKind

	Literal string
	Ref     filter.Field

	// ExprRegexReplace
	Source  *Expr
	Re      *regexp.Regexp
	Replace string

	// ExprCounter
	Counter *Counter
	Format  string // e.g. "%d"; empty means strconv.FormatInt base 10

	// ExprConcat
	Parts []Expr
}

// Literal is a constant string expression.
func Literal(s string) Expr { return Expr{Kind: ExprLiteral, Literal: s} }

// FieldRef reads another (or the same) field's current value.
func FieldRef(f filter.Field) Expr { return Expr{Kind: ExprFieldRef, Ref: f} }

// RegexReplace applies re.ReplaceAllString(eval(src), replace).
func RegexReplace(src Expr, re *regexp.Regexp, replace string) Expr {
	return Expr{Kind: ExprRegexReplace, Source: &src, Re: re, Replace: replace}
}

// CounterNext stamps the counter's next value, formatted with format (a
// fmt verb applied to an int64), or base-10 decimal if format is empty.
func CounterNext(c *Counter, format string) Expr {
	return Expr{Kind: ExprCounter, Counter: c, Format: format}
}

// Concat joins the evaluated parts.
func Concat(parts ...Expr) Expr { return Expr{Kind: ExprConcat, Parts: parts} }

func evalExpr(e Expr, c *catalogmodel.Channel) string {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal
	case ExprFieldRef:
		return fieldValue(e.Ref, c)
	case ExprRegexReplace:
		return e.Re.ReplaceAllString(evalExpr(*e.Source, c), e.Replace)
	case ExprCounter:
		n := e.Counter.Next()
		if e.Format == "" {
			return strconv.FormatInt(n, 10)
		}
		return fmt.Sprintf(e.Format, n)
	case ExprConcat:
		out := ""
		for _, p := range e.Parts {
			out += evalExpr(p, c)
		}
		return out
	default:
		return ""
	}
}

func fieldValue(f filter.Field, c *catalogmodel.Channel) string {
	switch f {
	case filter.FieldGroup:
		return c.Group
	case filter.FieldName:
		return c.Name
	case filter.FieldTitle:
		return c.Title
	case filter.FieldURL:
		return c.URL
	case filter.FieldInput:
		return c.InputName
	case filter.FieldType:
		return string(c.ItemType)
	case filter.FieldCaption:
		return c.Title
	default:
		return ""
	}
}

func setField(f filter.Field, c *catalogmodel.Channel, v string) {
	switch f {
	case filter.FieldGroup:
		c.Group = v
	case filter.FieldName:
		c.Name = v
	case filter.FieldTitle:
		c.Title = v
	case filter.FieldURL:
		c.URL = v
	case filter.FieldInput:
		c.InputName = v
	case filter.FieldCaption:
		c.Title = v
	// FieldType is read-only: item_type is assigned by ingestion, not the
	// mapper's field-rewrite statements.
	default:
	}
}

// Script is an ordered sequence of statements applied in one pass.
type Script struct {
	Stmts []Stmt
}

// Apply runs script against c, mutating it in place. Statements execute
// left to right; a field written by an earlier statement is visible to
// expressions evaluated by later ones in the same pass.
func Apply(script Script, c *catalogmodel.Channel, asciiFold bool) {
	for _, stmt := range script.Stmts {
		applyStmt(stmt, c, asciiFold)
	}
}

func applyStmt(stmt Stmt, c *catalogmodel.Channel, asciiFold bool) {
	switch stmt.Kind {
	case StmtAssign:
		v := evalExpr(stmt.Expr, c)
		setField(stmt.Field, c, v)
	case StmtGuard:
		if filter.Eval(stmt.Guard, c, asciiFold) {
			applyStmt(*stmt.GuardInner, c, asciiFold)
		}
	}
}
