package command

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/zephyrtronium/brobot/message"
)

// Rule is a text pattern with a response, evaluated on every message
// independently of commands.
type Rule interface {
	// Name is the name of the rule for logs and metrics.
	Name() string
	// Respond returns the response to msg, if the rule matches it.
	Respond(msg *message.Received) (message.Sent, bool)
}

// ContainsAll matches messages containing every one of a set of substrings,
// ignoring case.
type ContainsAll struct {
	name     string
	triggers []string
	reply    string
}

// NewContainsAll creates a rule which replies with reply to messages
// containing every trigger. It panics if there are no triggers.
func NewContainsAll(name string, reply string, triggers ...string) *ContainsAll {
	if len(triggers) == 0 {
		panic("command: ContainsAll rule with no triggers")
	}
	t := make([]string, len(triggers))
	for i, s := range triggers {
		t[i] = strings.ToLower(s)
	}
	return &ContainsAll{name: name, triggers: t, reply: reply}
}

func (r *ContainsAll) Name() string { return r.name }

func (r *ContainsAll) Respond(msg *message.Received) (message.Sent, bool) {
	lower := strings.ToLower(msg.Text)
	for _, t := range r.triggers {
		if !strings.Contains(lower, t) {
			return message.Sent{}, false
		}
	}
	return message.Format(msg.To, "%s", r.reply), true
}

// AvatarPhrase matches messages exactly equal to a phrase and responds with
// the sender's avatar.
type AvatarPhrase struct {
	phrase string
}

// NewAvatarPhrase creates a rule replying to phrase with the sender's avatar.
func NewAvatarPhrase(phrase string) *AvatarPhrase {
	return &AvatarPhrase{phrase: phrase}
}

func (r *AvatarPhrase) Name() string { return "avatar" }

func (r *AvatarPhrase) Respond(msg *message.Received) (message.Sent, bool) {
	if msg.Text != r.phrase || msg.Avatar == "" {
		return message.Sent{}, false
	}
	return message.Format(msg.To, "%s", msg.Avatar).AsReply(msg.ID), true
}

// MatchChoice matches messages against an expression and responds with a
// random one of a set of replies.
type MatchChoice struct {
	name    string
	re      *regexp.Regexp
	replies []string
}

// NewMatchChoice creates a rule replying to messages matching re. It panics
// if there are no replies.
func NewMatchChoice(name string, re *regexp.Regexp, replies ...string) *MatchChoice {
	if len(replies) == 0 {
		panic("command: MatchChoice rule with no replies")
	}
	return &MatchChoice{name: name, re: re, replies: replies}
}

func (r *MatchChoice) Name() string { return r.name }

func (r *MatchChoice) Respond(msg *message.Received) (message.Sent, bool) {
	if !r.re.MatchString(msg.Text) {
		return message.Sent{}, false
	}
	return message.Format(msg.To, "%s", r.replies[rand.IntN(len(r.replies))]), true
}
