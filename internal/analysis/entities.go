package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/recallhq/deepmemory/internal/models"
)

// capitalizedRunRegex matches runs of capitalized words ("Acme Labs",
// "Redis"). backtickTermRegex catches `inline code` terms, which agents use
// heavily for project and concept names.
var (
	capitalizedRunRegex = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]+(?:[ \t][A-Z][A-Za-z0-9]+)*\b`)
	backtickTermRegex   = regexp.MustCompile("`([^`\n]{2,64})`")
	camelCaseRegex      = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z0-9]*\b`)
)

var orgSuffixes = []string{"inc", "corp", "labs", "ltd", "llc", "team", "gmbh", "co"}

var placeCues = map[string]bool{"in": true, "at": true, "near": true, "from": true, "to": true}

var personTitles = map[string]bool{"mr": true, "ms": true, "mrs": true, "dr": true, "prof": true}

// sentence starters that produce false capitalized-run hits.
var startNoise = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"There": true, "Here": true, "When": true, "Then": true, "What": true,
	"Where": true, "Which": true, "After": true, "Before": true, "First": true,
	"Also": true, "Now": true, "Next": true, "Yes": true, "Okay": true,
	"Please": true, "Remember": true, "Note": true, "Its": true, "But": true,
	"And": true, "For": true, "With": true, "Our": true, "Your": true,
	"You": true, "Let": true, "Use": true, "Make": true, "Run": true,
	"Can": true, "Could": true, "Should": true, "Will": true, "Would": true,
	"How": true, "Why": true, "Not": true, "Just": true, "Sorry": true,
	"Thanks": true, "Thank": true, "Hello": true, "Got": true, "Good": true,
	"Done": true, "Fixed": true, "Looks": true, "Sure": true,
}

// extractEntities finds named things across all messages, deduplicated by
// normalized (lowercased) name, with per-transcript frequency counts.
// Heuristic only: capitalized runs, backticked terms, camelCase identifiers.
func extractEntities(texts []string) []models.ExtractedEntity {
	type entry struct {
		name  string
		eType models.EntityType
		count int
		order int
	}
	seen := make(map[string]*entry)
	order := 0

	record := func(name string, eType models.EntityType) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if e, ok := seen[key]; ok {
			e.count++
			// A typed classification wins over a prior "other" guess.
			if e.eType == models.EntityOther && eType != models.EntityOther {
				e.eType = eType
			}
			return
		}
		seen[key] = &entry{name: name, eType: eType, count: 1, order: order}
		order++
	}

	for _, text := range texts {
		words := strings.Fields(text)
		for _, m := range capitalizedRunRegex.FindAllStringIndex(text, -1) {
			run := text[m[0]:m[1]]
			first := strings.Fields(run)[0]
			if len(strings.Fields(run)) == 1 && startNoise[first] {
				continue
			}
			record(run, classifyRun(run, precedingWord(words, first)))
		}
		for _, m := range backtickTermRegex.FindAllStringSubmatch(text, -1) {
			record(m[1], models.EntityConcept)
		}
		for _, id := range camelCaseRegex.FindAllString(text, -1) {
			record(id, models.EntityConcept)
		}
	}

	entities := make([]models.ExtractedEntity, 0, len(seen))
	for _, e := range seen {
		entities = append(entities, models.ExtractedEntity{
			Name:      e.name,
			Type:      e.eType,
			Frequency: e.count,
		})
	}
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Frequency != entities[j].Frequency {
			return entities[i].Frequency > entities[j].Frequency
		}
		return seen[strings.ToLower(entities[i].Name)].order < seen[strings.ToLower(entities[j].Name)].order
	})
	return entities
}

// classifyRun guesses an entity type from surface cues. Accuracy is not
// guaranteed; the contract is a reproducible, tunable procedure.
func classifyRun(run, preceding string) models.EntityType {
	lower := strings.ToLower(run)
	words := strings.Fields(lower)
	last := words[len(words)-1]

	for _, suffix := range orgSuffixes {
		if last == suffix {
			return models.EntityOrganization
		}
	}
	if strings.HasPrefix(lower, "project ") || strings.HasSuffix(lower, " project") {
		return models.EntityProject
	}
	prev := strings.ToLower(strings.Trim(preceding, ".,:;!?"))
	if personTitles[strings.TrimSuffix(prev, ".")] {
		return models.EntityPerson
	}
	if placeCues[prev] && len(words) <= 3 {
		return models.EntityPlace
	}
	return models.EntityOther
}

// precedingWord returns the word before the first occurrence of target.
func precedingWord(words []string, target string) string {
	for i, w := range words {
		if strings.Trim(w, ".,:;!?\"'()") == target && i > 0 {
			return words[i-1]
		}
	}
	return ""
}
