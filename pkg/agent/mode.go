package agent

import (
	"fmt"
	"regexp"
)

// Mode selects how a question is handled.
type Mode string

const (
	ModeAuto         Mode = "auto"
	ModeChat         Mode = "chat"
	ModeDeepAnalysis Mode = "deep_analysis"
)

// ParseMode validates a client-supplied mode string. Empty defaults to
// auto.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "":
		return ModeAuto, nil
	case string(ModeAuto), string(ModeChat), string(ModeDeepAnalysis):
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// analysisToken detects an explicit request for deep analysis in auto
// mode. Word-boundary match so "analysis" triggers but "psychoanalysisx"
// does not.
var analysisToken = regexp.MustCompile(`(?i)\banalysis\b`)

// DefaultDomainPattern matches municipal service-request vocabulary in
// chat follow-ups. A match triggers a cluster prediction so the UI can
// highlight the related chart region before the reply renders.
var DefaultDomainPattern = regexp.MustCompile(
	`(?i)\b(booking|facility|city hall|room|parks?|roads?|traffic|sidewalks?|garbage|trees?|recreation|streetlights?|potholes?|complaints?)\b`)
