package analysis

import (
	"regexp"
	"strings"
	"time"

	"github.com/recallhq/deepmemory/internal/models"
)

// eventCue maps phrasing patterns to milestone types. Patterns cover
// English and Chinese phrasing; first match within a message wins.
type eventCue struct {
	eType   models.EventType
	pattern *regexp.Regexp
}

var eventCues = []eventCue{
	{models.EventRequirementConfirmed, regexp.MustCompile(`(?i)requirements?\s+(?:are\s+)?confirmed|confirm(?:ed)?\s+the\s+requirements?|需求.{0,6}确认`)},
	{models.EventDesignDecided, regexp.MustCompile(`(?i)\bdecided\s+(?:on|to)\b|we(?:'ll| will)\s+go\s+with|design\s+decision|决定(?:采用|使用)|设计.{0,6}定了`)},
	{models.EventImplementationStarted, regexp.MustCompile(`(?i)start(?:ed|ing)?\s+(?:the\s+)?implement|began\s+implementing|开始(?:实现|开发|编码)`)},
	{models.EventIssueResolved, regexp.MustCompile(`(?i)\b(?:fixed|resolved)\b.{0,40}\b(?:bug|issue|problem|error)\b|\b(?:bug|issue|problem|error)\b.{0,40}\b(?:fixed|resolved)\b|(?:修复|解决)了`)},
	{models.EventMilestoneReached, regexp.MustCompile(`(?i)\bmilestone\b|\bshipped\b|\breleased\b|went\s+live|上线了|里程碑`)},
}

// extractEvents scans each message for milestone cues. A message can yield
// one event per cue type. Transcripts carry no per-message timestamps, so
// events share the analysis time.
func extractEvents(messages []models.Message, now time.Time) []models.ExtractedEvent {
	var events []models.ExtractedEvent
	ts := now.Unix()
	for _, msg := range messages {
		for _, cue := range eventCues {
			if cue.pattern.MatchString(msg.Content) {
				events = append(events, models.ExtractedEvent{
					Type:      cue.eType,
					Summary:   eventSummary(msg.Content),
					Timestamp: ts,
				})
			}
		}
	}
	return events
}

// eventSummary keeps the first line of the message, truncated.
func eventSummary(content string) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	const maxLen = 160
	runes := []rune(line)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return line
}
