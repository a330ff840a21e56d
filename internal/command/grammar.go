package command

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Grammar recognizes "<prefix><name> <argument>" chat lines. Unicode spaces
// (U+3000 from CJK input methods, NBSP) separate the name like ASCII ones.
type Grammar struct {
	prefix string
	re     *regexp.Regexp
}

func NewGrammar(prefix string) (*Grammar, error) {
	if utf8.RuneCountInString(prefix) != 1 {
		return nil, fmt.Errorf("command prefix must be a single character, got %q", prefix)
	}
	re, err := regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `([^\s\p{Z}]+)[\s\p{Z}]*(.*)$`)
	if err != nil {
		return nil, fmt.Errorf("compile command grammar: %w", err)
	}
	return &Grammar{prefix: prefix, re: re}, nil
}

func (g *Grammar) Prefix() string { return g.prefix }

// Parse returns the command name and the trimmed remainder. Lines that do
// not start with the prefix, or carry nothing after it, are not commands.
func (g *Grammar) Parse(line string) (name, arg string, ok bool) {
	m := g.re.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}
