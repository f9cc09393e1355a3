package analysis

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/scoring"
	"github.com/recallhq/deepmemory/internal/sensitive"
)

// intentMarkerRegex catches explicit "remember this"-style phrasing in the
// supported languages. A match pushes user_intent close to 1.
var intentMarkerRegex = regexp.MustCompile(`(?i)\bremember\s+(?:this|that|it)\b|\bdon'?t\s+forget\b|\bkeep\s+in\s+mind\b|\bnote\s+(?:this|that)\s+down\b|\bfor\s+future\s+reference\b|请记住|记住这|务必记住|別忘了|别忘了`)

// Input is one analysis request over a transcript window. Analysis is
// session-agnostic; scoping to a session happens at persistence time.
type Input struct {
	Messages              []models.Message
	MaxMemoriesPerSession int
	ImportanceThreshold   float64
}

// Output carries everything extracted from the window. Entities, topics and
// events always describe the whole window, independent of the draft cap.
type Output struct {
	Entities []models.ExtractedEntity
	Topics   []models.ExtractedTopic
	Events   []models.ExtractedEvent
	Drafts   []models.MemoryDraft
	Added    int
	Filtered int
}

// Analyzer turns a transcript into entities, topics, events and candidate
// memory drafts. Heuristic and deterministic; no statistical NLP.
type Analyzer struct {
	now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// Analyze scans the transcript. Each message with visible content is one
// candidate segment; a segment survives as a draft iff its importance meets
// the threshold and it is not culled by the session cap. Added + Filtered
// always equals the number of segments considered.
func (a *Analyzer) Analyze(in Input) Output {
	now := a.now()
	out := Output{}

	texts := make([]string, 0, len(in.Messages))
	roles := make([]string, 0, len(in.Messages))
	for _, msg := range in.Messages {
		content := sensitive.StripPrivateBlocks(msg.Content)
		if strings.TrimSpace(content) == "" {
			continue
		}
		texts = append(texts, content)
		roles = append(roles, msg.Role)
	}

	out.Entities = extractEntities(texts)
	out.Topics = extractTopics(texts, roles)
	out.Events = extractEvents(in.Messages, now)

	counts := termCounts(texts)
	seenTerms := make(map[string]bool)

	type candidate struct {
		draft models.MemoryDraft
		order int
	}
	var retained []candidate
	considered := 0

	for i, text := range texts {
		considered++
		terms := tokenize(text)
		sig := models.Signals{
			Frequency:  segmentFrequency(terms, counts),
			Novelty:    segmentNovelty(terms, seenTerms),
			UserIntent: segmentIntent(text, roles[i]),
			Length:     float64(runeLength(text)),
		}
		for _, term := range terms {
			seenTerms[term] = true
		}

		importance := scoring.Score(&sig)
		if importance < in.ImportanceThreshold {
			continue
		}

		retained = append(retained, candidate{
			draft: models.MemoryDraft{
				Content:    text,
				Entities:   segmentNames(text, out.Entities),
				Topics:     segmentTopics(terms, out.Topics),
				CreatedAt:  now.Unix(),
				Importance: importance,
				Signals:    sig,
			},
			order: i,
		})
	}

	// Cap: keep the highest-importance drafts, ties broken by earliest
	// occurrence in the transcript.
	if in.MaxMemoriesPerSession > 0 && len(retained) > in.MaxMemoriesPerSession {
		sort.SliceStable(retained, func(i, j int) bool {
			if retained[i].draft.Importance != retained[j].draft.Importance {
				return retained[i].draft.Importance > retained[j].draft.Importance
			}
			return retained[i].order < retained[j].order
		})
		retained = retained[:in.MaxMemoriesPerSession]
		sort.SliceStable(retained, func(i, j int) bool {
			return retained[i].order < retained[j].order
		})
	}

	for _, c := range retained {
		out.Drafts = append(out.Drafts, c.draft)
	}
	out.Added = len(out.Drafts)
	out.Filtered = considered - out.Added
	return out
}

// segmentFrequency is the mean transcript-wide count of the segment's three
// most recurrent terms, the recurrence signal fed to the scorer.
func segmentFrequency(terms []string, counts map[string]int) float64 {
	if len(terms) == 0 {
		return 0
	}
	top := make([]int, 0, len(terms))
	for _, t := range terms {
		top = append(top, counts[t])
	}
	sort.Sort(sort.Reverse(sort.IntSlice(top)))
	n := 3
	if len(top) < n {
		n = len(top)
	}
	sum := 0
	for _, c := range top[:n] {
		sum += c
	}
	return float64(sum) / float64(n)
}

// segmentNovelty is the fraction of the segment's terms not seen in any
// earlier segment of the window.
func segmentNovelty(terms []string, seen map[string]bool) float64 {
	if len(terms) == 0 {
		return 0
	}
	unseen := 0
	for _, t := range terms {
		if !seen[t] {
			unseen++
		}
	}
	return float64(unseen) / float64(len(terms))
}

// segmentIntent maps phrasing to the user_intent signal: explicit markers in
// any supported language read as near-certain intent, ordinary user text as
// moderate, assistant narration as low.
func segmentIntent(text, role string) float64 {
	if intentMarkerRegex.MatchString(text) {
		return 0.95
	}
	if role == "user" {
		return 0.5
	}
	return 0.3
}

// segmentNames lists which already-extracted entities appear in this segment.
func segmentNames(text string, entities []models.ExtractedEntity) []string {
	lower := strings.ToLower(text)
	var names []string
	for _, e := range entities {
		if strings.Contains(lower, strings.ToLower(e.Name)) {
			names = append(names, e.Name)
		}
	}
	return names
}

// segmentTopics lists which transcript topics this segment's terms touch.
func segmentTopics(terms []string, topics []models.ExtractedTopic) []string {
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}
	var names []string
	for _, topic := range topics {
		if termSet[topic.Name] {
			names = append(names, topic.Name)
		}
	}
	return names
}

// extractTopics ranks recurring non-stopword terms across the window. Topic
// importance is a salience signal: saturating recurrence with a boost for
// terms the user (not just the assistant) used.
func extractTopics(texts, roles []string) []models.ExtractedTopic {
	counts := make(map[string]int)
	userCounts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for i, text := range texts {
		for _, term := range tokenize(text) {
			counts[term]++
			if roles[i] == "user" {
				userCounts[term]++
			}
			if _, ok := firstSeen[term]; !ok {
				firstSeen[term] = order
				order++
			}
		}
	}

	var topics []models.ExtractedTopic
	for term, count := range counts {
		if count < 2 {
			continue
		}
		importance := math.Min(float64(count)/5.0, 1.0)
		if userCounts[term] > 0 {
			importance = math.Min(importance+0.2, 1.0)
		}
		topics = append(topics, models.ExtractedTopic{
			Name:       term,
			Frequency:  count,
			Importance: importance,
		})
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Frequency != topics[j].Frequency {
			return topics[i].Frequency > topics[j].Frequency
		}
		return firstSeen[topics[i].Name] < firstSeen[topics[j].Name]
	})

	const maxTopics = 10
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}
