package engine

import "fmt"

// Narration is the text produced by an engine call. Text is meant for the
// players, Warning for the host's logs (unsupported rules, inconsistencies).
type Narration struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

func say(format string, args ...interface{}) Narration {
	return Narration{Text: fmt.Sprintf(format, args...)}
}

func warn(format string, args ...interface{}) Narration {
	return Narration{Warning: fmt.Sprintf(format, args...)}
}

// Empty reports whether the call was a silent no-op
func (n Narration) Empty() bool {
	return n.Text == "" && n.Warning == ""
}

// Merge appends rhs to n, line by line, channel by channel
func (n Narration) Merge(rhs Narration) Narration {
	return Narration{
		Text:    joinLines(n.Text, rhs.Text),
		Warning: joinLines(n.Warning, rhs.Warning),
	}
}

func joinLines(a, b string) string {
	switch {
	case b == "":
		return a
	case a == "":
		return b
	default:
		return a + "\n" + b
	}
}
