package util

import "strings"

// StripCodeFences unwraps an answer the model wrapped whole in a ``` block (```markdown, ```md, ...).
// Fences inside the text are left alone.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	if tag := strings.TrimSpace(t[3:nl]); strings.ContainsAny(tag, " `") {
		return s
	}
	inner := t[nl+1 : len(t)-3]
	if strings.Contains(inner, "\n```") {
		return s
	}
	return strings.TrimRight(inner, "\n")
}

// SplitText cuts s into chunks of at most limit bytes, preferring line breaks and never splitting a rune.
func SplitText(s string, limit int) []string {
	if limit <= 0 || len(s) <= limit {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var out []string
	for len(s) > limit {
		cut := strings.LastIndexByte(s[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !runeStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		} else {
			cut++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func runeStart(b byte) bool { return b&0xC0 != 0x80 }
