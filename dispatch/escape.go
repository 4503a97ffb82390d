package dispatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"guardbot/model"
)

const (
	maxMessageRunes = 2000
	maxFieldRunes   = 512
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
	"<", `\<`,
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
	":", `\:`,
	"-", `\-`,
	"@", "@\u200b",
	"{", "{\u200b",
)

// Escape makes untrusted text inert in a Discord message: control characters
// are dropped and markdown is escaped. Every @ and { is broken so mass
// mentions cannot fire and escaped text never forms a placeholder.
func Escape(s string) string {
	s = truncate(strings.ToValidUTF8(s, ""), maxFieldRunes)
	s = strings.Map(func(r rune) rune {
		if r == '\n' {
			return ' '
		}
		if unicode.IsControl(r) || isBidiControl(r) {
			return -1
		}
		return r
	}, s)
	return markdownEscaper.Replace(s)
}

func isBidiControl(r rune) bool {
	return r == '\u200e' || r == '\u200f' || (r >= '\u202a' && r <= '\u202e') || (r >= '\u2066' && r <= '\u2069')
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func isSnowflake(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Render fills the placeholders of a decision's trusted template with escaped
// values and computes who the message may ping.
func Render(d model.Decision) OutgoingMessage {
	msg := OutgoingMessage{
		GroupID:    d.Target.GroupID,
		ChannelID:  d.Target.ChannelID,
		ReplyTo:    d.Target.MessageID,
		Buttons:    d.Buttons,
		MentionAll: d.MentionAll,
	}

	var pairs []string
	if d.Mention != nil {
		name := Escape(d.Mention.DisplayName())
		mention := name
		if strings.Contains(d.Text, "{mention}") && isSnowflake(d.Mention.ID) {
			mention = "<@" + d.Mention.ID + ">"
			msg.MentionUserIDs = []string{d.Mention.ID}
		}
		pairs = append(pairs,
			"{mention}", mention,
			"{name}", name,
			"{username}", Escape(d.Mention.Username),
		)
	}
	pairs = append(pairs, "{reason}", Escape(d.Reason))

	msg.Text = truncate(strings.NewReplacer(pairs...).Replace(d.Text), maxMessageRunes)
	return msg
}
