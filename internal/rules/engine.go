// Package rules rewrites recognized French phrases with user-provided
// substitutions before they are matched or classified.
//
// A rules file holds one rule per line:
//
//	# comment
//	tache => tâche
//	s/\s+s'il te pla[iî]t$//g
//
// Literal rules replace whole words, ignoring case. Regex rules use sed
// syntax with any non-alphanumeric delimiter and the flags i, g, m and s;
// they are case-insensitive unless the pattern opts out.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"ergovoice/internal/logging"
)

// DefaultIterationLimit bounds how many passes Apply makes over the rules.
const DefaultIterationLimit = 30

var errEmptySource = errors.New("literal rule source cannot be empty")

type rewriter interface {
	rewrite(input string) (string, bool)
}

// Rule is one parsed line of a rules file.
type Rule struct {
	Line   int
	Source string
	rw     rewriter
}

// Engine applies its rules in file order, repeating until the text stops
// changing or the iteration limit is reached.
type Engine struct {
	rules  []Rule
	limit  int
	logger zerolog.Logger
}

// Empty returns an engine that leaves text untouched.
func Empty() *Engine {
	return &Engine{limit: DefaultIterationLimit, logger: logging.Component("rules")}
}

// Load reads the rules file at path from fsys. A blank path or a missing
// file yields an empty engine.
func Load(fsys afero.Fs, path string, limit int) (*Engine, error) {
	engine := Empty()
	if limit > 0 {
		engine.limit = limit
	}
	if strings.TrimSpace(path) == "" {
		return engine, nil
	}

	file, err := fsys.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		engine.logger.Debug().Str("path", path).Msg("no rules file")
		return engine, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer file.Close()

	rules, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %q: %w", path, err)
	}
	engine.rules = rules
	engine.logger.Info().Str("path", path).Int("rules", len(rules)).Msg("substitution rules loaded")
	return engine, nil
}

// Parse compiles every rule read from r.
func Parse(r io.Reader) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rw, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, Rule{Line: lineNo, Source: line, rw: rw})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseLine(line string) (rewriter, error) {
	switch {
	case isSedExpression(line):
		return parseSed(line)
	case strings.Contains(line, "=>"):
		return parseLiteral(line)
	default:
		return nil, errors.New("expected \"from => to\" or s/pattern/replacement/flags")
	}
}

// Rules returns the loaded rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Apply rewrites text.
func (e *Engine) Apply(text string) string {
	if len(e.rules) == 0 {
		return text
	}
	result := text
	for pass := 0; pass < e.limit; pass++ {
		changed := false
		for _, rule := range e.rules {
			if next, ok := rule.rw.rewrite(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			if result != text {
				e.logger.Debug().Str("from", text).Str("to", result).Msg("transcript rewritten")
			}
			return result
		}
	}
	e.logger.Warn().Str("text", text).Int("limit", e.limit).Msg("substitution rules did not settle")
	return result
}

// literal replaces whole-word occurrences of a phrase.
type literal struct {
	re *regexp.Regexp
	to string
}

func parseLiteral(line string) (rewriter, error) {
	from, to, _ := strings.Cut(line, "=>")
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, errEmptySource
	}
	return literal{re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(from)), to: to}, nil
}

func (l literal) rewrite(input string) (string, bool) {
	var out strings.Builder
	last := 0
	for _, loc := range l.re.FindAllStringIndex(input, -1) {
		if !wordBoundary(input, loc[0], loc[1]) {
			continue
		}
		out.WriteString(input[last:loc[0]])
		out.WriteString(l.to)
		last = loc[1]
	}
	if last == 0 && out.Len() == 0 {
		return input, false
	}
	out.WriteString(input[last:])
	result := out.String()
	return result, result != input
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// sed is an s/pattern/replacement/flags rule. Without g only the first
// match is replaced.
type sed struct {
	re     *regexp.Regexp
	repl   string
	global bool
}

func isSedExpression(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line[1:])
	return !isWordRune(r) && !unicode.IsSpace(r)
}

func parseSed(line string) (rewriter, error) {
	delim, size := utf8.DecodeRuneInString(line[1:])
	rest := line[1+size:]

	pattern, rest, err := splitDelimited(rest, delim)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	repl, flags, err := splitDelimited(rest, delim)
	if err != nil {
		return nil, fmt.Errorf("replacement: %w", err)
	}

	mode := "i"
	global := false
	for _, flag := range strings.TrimSpace(flags) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			mode += string(flag)
		default:
			return nil, fmt.Errorf("unsupported flag %q", flag)
		}
	}
	re, err := regexp.Compile("(?" + mode + ")" + pattern)
	if err != nil {
		return nil, err
	}
	return sed{re: re, repl: repl, global: global}, nil
}

func (s sed) rewrite(input string) (string, bool) {
	var result string
	if s.global {
		result = s.re.ReplaceAllString(input, s.repl)
	} else {
		loc := s.re.FindStringSubmatchIndex(input)
		if loc == nil {
			return input, false
		}
		expanded := s.re.ExpandString(nil, s.repl, input, loc)
		result = input[:loc[0]] + string(expanded) + input[loc[1]:]
	}
	return result, result != input
}

// splitDelimited reads up to the next unescaped delim. An escaped delimiter
// loses its backslash; other escapes are kept for the regexp compiler.
func splitDelimited(s string, delim rune) (string, string, error) {
	var b strings.Builder
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			if r != delim {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == delim:
			return b.String(), s[i+utf8.RuneLen(r):], nil
		default:
			b.WriteRune(r)
		}
	}
	return "", "", errors.New("unterminated expression")
}
