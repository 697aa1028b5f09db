// Package prompt builds the instruction sent to the completion service
// from a snapshot of the edited post.
package prompt

import (
	"fmt"
	"strings"
)

// Type is the kind of generation a caller asks for
type Type string

const (
	TypeContinue        Type = "continue"
	TypeSummarize       Type = "summarize"
	TypeSummary         Type = "summary"
	TypeSimplify        Type = "simplify"
	TypeCorrectSpelling Type = "correctSpelling"
	TypeGenerateTitle   Type = "generateTitle"
	TypeMakeLonger      Type = "makeLonger"
	TypeMakeShorter     Type = "makeShorter"
	TypeChangeTone      Type = "changeTone"
	TypeUserPrompt      Type = "userPrompt"
)

// Types lists every supported prompt type
var Types = []Type{
	TypeContinue, TypeSummarize, TypeSummary, TypeSimplify, TypeCorrectSpelling,
	TypeGenerateTitle, TypeMakeLonger, TypeMakeShorter, TypeChangeTone, TypeUserPrompt,
}

// ParseType returns the prompt type for s
func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Tone is the voice the generated text should use
type Tone string

const (
	ToneFormal      Tone = "formal"
	ToneInformal    Tone = "informal"
	ToneOptimistic  Tone = "optimistic"
	ToneHumorous    Tone = "humorous"
	ToneSerious     Tone = "serious"
	ToneSkeptical   Tone = "skeptical"
	ToneEmpathetic  Tone = "empathetic"
	ToneConfident   Tone = "confident"
	TonePassionate  Tone = "passionate"
	ToneProvocative Tone = "provocative"
)

// DefaultTone is used when a request does not name a tone
const DefaultTone = ToneFormal

// Tones lists every supported tone
var Tones = []Tone{
	ToneFormal, ToneInformal, ToneOptimistic, ToneHumorous, ToneSerious,
	ToneSkeptical, ToneEmpathetic, ToneConfident, TonePassionate, ToneProvocative,
}

// Valid reports whether t is a supported tone
func (t Tone) Valid() bool {
	for _, tone := range Tones {
		if tone == t {
			return true
		}
	}
	return false
}

// Options configures a single request
type Options struct {
	RetryRequest bool
	Tone         Tone
}

// DefaultOptions returns the options applied when a caller supplies none
func DefaultOptions() Options {
	return Options{RetryRequest: false, Tone: DefaultTone}
}

// Input is everything the builder may draw on
type Input struct {
	GeneratedContent string
	AllPostContent   string
	PostContentAbove string
	CurrentPostTitle string
	Options          Options
	Prompt           string
	UserPrompt       string
	Type             Type
	Categories       []string
	Tags             []string
}

// BuildFunc maps an input snapshot to a prompt
type BuildFunc func(Input) string

// Build is the default BuildFunc
func Build(in Input) string {
	tone := in.Options.Tone
	if !tone.Valid() {
		tone = DefaultTone
	}

	var b strings.Builder
	switch in.Type {
	case TypeSummarize, TypeSummary:
		fmt.Fprintf(&b, "Summarize the following content in a few sentences:\n\n%s", subject(in))
	case TypeSimplify:
		fmt.Fprintf(&b, "Simplify the following content so it is easy to read:\n\n%s", subject(in))
	case TypeCorrectSpelling:
		fmt.Fprintf(&b, "Correct the spelling and grammar of the following content, keeping its meaning:\n\n%s", subject(in))
	case TypeMakeLonger:
		fmt.Fprintf(&b, "Expand the following content with more detail:\n\n%s", subject(in))
	case TypeMakeShorter:
		fmt.Fprintf(&b, "Make the following content shorter:\n\n%s", subject(in))
	case TypeChangeTone:
		fmt.Fprintf(&b, "Rewrite the following content with a %s tone:\n\n%s", tone, subject(in))
		return b.String()
	case TypeGenerateTitle:
		fmt.Fprintf(&b, "Generate a title for the following content. Reply with the title only:\n\n%s", in.AllPostContent)
		return b.String()
	case TypeUserPrompt:
		b.WriteString(userRequest(in))
	default:
		if in.UserPrompt != "" && in.Type == "" {
			b.WriteString(userRequest(in))
			break
		}
		b.WriteString(continuation(in))
	}

	if hint := taxonomyHint(in); hint != "" {
		b.WriteString("\n\n")
		b.WriteString(hint)
	}
	fmt.Fprintf(&b, "\n\nWrite with a %s tone. Do not wrap the response in quotes.", tone)
	return b.String()
}

// subject is the text a rewrite operates on: the last generated
// suggestion when there is one, otherwise the whole post
func subject(in Input) string {
	if in.GeneratedContent != "" {
		return in.GeneratedContent
	}
	return in.AllPostContent
}

func continuation(in Input) string {
	var b strings.Builder
	b.WriteString("Please continue writing the following post")
	if in.CurrentPostTitle != "" {
		fmt.Fprintf(&b, " titled %q", in.CurrentPostTitle)
	}
	b.WriteString(".")
	if in.PostContentAbove != "" {
		fmt.Fprintf(&b, " This is the content so far:\n\n%s", in.PostContentAbove)
	} else if in.CurrentPostTitle == "" {
		b.WriteString(" The post is empty, so start it.")
	}
	return b.String()
}

func userRequest(in Input) string {
	var b strings.Builder
	b.WriteString(in.UserPrompt)
	if in.GeneratedContent != "" {
		fmt.Fprintf(&b, "\n\nApply the request to this content:\n\n%s", in.GeneratedContent)
		return b.String()
	}
	if in.CurrentPostTitle != "" {
		fmt.Fprintf(&b, "\n\nThe post is titled %q.", in.CurrentPostTitle)
	}
	if in.PostContentAbove != "" {
		fmt.Fprintf(&b, " This is the content so far:\n\n%s", in.PostContentAbove)
	}
	return b.String()
}

func taxonomyHint(in Input) string {
	var hints []string
	if len(in.Categories) > 0 {
		hints = append(hints, "categorized as "+strings.Join(in.Categories, ", "))
	}
	if len(in.Tags) > 0 {
		hints = append(hints, "tagged "+strings.Join(in.Tags, ", "))
	}
	if len(hints) == 0 {
		return ""
	}
	return "The post is " + strings.Join(hints, " and ") + "."
}
