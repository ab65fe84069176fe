// Package template expands {{...}} expressions in item text.
//
// Supported expressions:
//
//	{{now}}                       current time, RFC 3339
//	{{date}}  {{date:%d %B}}      today, strftime format (default %Y-%m-%d)
//	{{today}} {{tomorrow}}        dates, format with a date pipe
//	{{weekday(1)|date:%A %d}}     a day of the current week, 0 is Sunday
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

const defaultDateFormat = "%Y-%m-%d"

var exprPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Context holds what expressions are evaluated against
type Context struct {
	Now       time.Time
	WeekStart time.Weekday
}

// dateValue is passed along a pipe chain until a date pipe formats it
type dateValue struct {
	t time.Time
}

// Expand replaces every expression in text. Unknown functions are an error.
func Expand(text string, ctx Context) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(text, func(m string) string {
		if firstErr != nil {
			return m
		}
		v, err := evaluate(m[2:len(m)-2], ctx)
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// evaluate runs a function and then every pipe, e.g. weekday(1)|date:%V
func evaluate(expr string, ctx Context) (string, error) {
	parts := strings.Split(expr, "|")
	value, err := call(parts[0], ctx)
	if err != nil {
		return "", err
	}
	for _, p := range parts[1:] {
		if value, err = pipe(strings.TrimSpace(p), value); err != nil {
			return "", err
		}
	}
	return toString(value), nil
}

func toString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case *dateValue:
		return strftime.Format(defaultDateFormat, v.t)
	}
	return ""
}

func pipe(expr string, value any) (any, error) {
	name, args := split(expr)
	dv, ok := value.(*dateValue)
	if name != "date" || !ok {
		return nil, fmt.Errorf("cannot pipe into %q", name)
	}
	if args == "" {
		args = defaultDateFormat
	}
	return strftime.Format(args, dv.t), nil
}

// split parses "name(args)" and "name:args"
func split(expr string) (name, args string) {
	expr = strings.TrimSpace(expr)
	if open := strings.Index(expr, "("); open > 0 && strings.HasSuffix(expr, ")") {
		return strings.TrimSpace(expr[:open]), strings.TrimSpace(expr[open+1 : len(expr)-1])
	}
	name, args, _ = strings.Cut(expr, ":")
	return strings.TrimSpace(name), strings.TrimSpace(args)
}

func call(expr string, ctx Context) (any, error) {
	name, args := split(expr)
	switch name {
	case "now":
		return ctx.Now.Format(time.RFC3339), nil
	case "date":
		if args == "" {
			args = defaultDateFormat
		}
		return strftime.Format(args, ctx.Now), nil
	case "today":
		return &dateValue{t: ctx.Now}, nil
	case "tomorrow":
		return &dateValue{t: ctx.Now.AddDate(0, 0, 1)}, nil
	case "weekday":
		day := 0
		if args != "" {
			n, err := strconv.Atoi(args)
			if err != nil || n < 0 || n > 6 {
				return nil, fmt.Errorf("weekday wants 0-6, got %q", args)
			}
			day = n
		}
		return &dateValue{t: weekday(ctx.Now, time.Weekday(day), ctx.WeekStart)}, nil
	}
	return nil, fmt.Errorf("unknown template function %q", name)
}

// weekday returns the date of day in the week containing now
func weekday(now time.Time, day, weekStart time.Weekday) time.Time {
	start := now.AddDate(0, 0, -((int(now.Weekday()) - int(weekStart) + 7) % 7))
	return start.AddDate(0, 0, (int(day)-int(weekStart)+7)%7)
}
