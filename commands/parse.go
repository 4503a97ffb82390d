package commands

import (
	"regexp"
	"strings"
)

var mentionToken = regexp.MustCompile(`^<@!?(\d+)>$`)

// Parsed is a text command split into its parts.
type Parsed struct {
	Name     string
	Args     []string
	Mentions []string // user ids mentioned in the arguments, in order
}

// Parse recognises "/name args" or "!name args" for a catalogued command.
// A "@botname" suffix on the command word is ignored. Mention tokens are moved
// out of Args into Mentions.
func Parse(text string) (Parsed, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '/' && text[0] != '!') {
		return Parsed{}, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return Parsed{}, false
	}

	word := fields[0]
	if at := strings.IndexByte(word, '@'); at > 0 {
		word = word[:at]
	}
	entry, ok := Lookup(word)
	if !ok {
		return Parsed{}, false
	}

	p := Parsed{Name: entry.Name()}
	for _, f := range fields[1:] {
		if m := mentionToken.FindStringSubmatch(f); m != nil {
			p.Mentions = append(p.Mentions, m[1])
			continue
		}
		p.Args = append(p.Args, f)
	}
	return p, true
}
