package analysis

import (
	"fmt"
	"testing"

	"github.com/recallhq/deepmemory/internal/models"
)

func TestAnalyzeExplicitIntent(t *testing.T) {
	tests := []struct {
		name   string
		marker string
	}{
		{"english marker", "Remember this: we deploy with blue-green releases only."},
		{"chinese marker", "请记住：生产环境的数据库密码轮换周期是三十天。"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewAnalyzer().Analyze(Input{
				Messages: []models.Message{
					{Role: "user", Content: tt.marker},
				},
				MaxMemoriesPerSession: 10,
				ImportanceThreshold:   0.3,
			})
			if len(out.Drafts) == 0 {
				t.Fatal("expected at least one draft for an explicit remember instruction")
			}
			if out.Drafts[0].Signals.UserIntent < 0.9 {
				t.Errorf("intent marker should yield user_intent near 1, got %f", out.Drafts[0].Signals.UserIntent)
			}
		})
	}
}

func TestAnalyzeCounters(t *testing.T) {
	messages := []models.Message{
		{Role: "user", Content: "Remember this: the staging cluster uses Kubernetes namespaces per team."},
		{Role: "assistant", Content: "Noted. Kubernetes namespaces per team on staging."},
		{Role: "user", Content: "ok"},
		{Role: "assistant", Content: "Anything else?"},
	}

	out := NewAnalyzer().Analyze(Input{
		Messages:              messages,
		MaxMemoriesPerSession: 10,
		ImportanceThreshold:   0.3,
	})

	considered := 0
	for _, m := range messages {
		if m.Content != "" {
			considered++
		}
	}
	if out.Added+out.Filtered != considered {
		t.Errorf("Added(%d) + Filtered(%d) != segments considered (%d)", out.Added, out.Filtered, considered)
	}
	if out.Added != len(out.Drafts) {
		t.Errorf("Added (%d) must equal draft count (%d)", out.Added, len(out.Drafts))
	}
}

func TestAnalyzeCapLaw(t *testing.T) {
	var messages []models.Message
	for i := 0; i < 12; i++ {
		messages = append(messages, models.Message{
			Role:    "user",
			Content: fmt.Sprintf("Remember this: deployment rule number %d requires approval from the platform team.", i),
		})
	}

	out := NewAnalyzer().Analyze(Input{
		Messages:              messages,
		MaxMemoriesPerSession: 3,
		ImportanceThreshold:   0.1,
	})

	if len(out.Drafts) > 3 {
		t.Fatalf("cap violated: %d drafts, max 3", len(out.Drafts))
	}
	if out.Added+out.Filtered != 12 {
		t.Errorf("counters must cover culled segments too: added=%d filtered=%d", out.Added, out.Filtered)
	}
	// Extraction reports on the whole window regardless of the cap.
	if len(out.Topics) == 0 {
		t.Error("expected topics from the full transcript window")
	}
}

func TestAnalyzeEntitiesAndEvents(t *testing.T) {
	messages := []models.Message{
		{Role: "user", Content: "We decided to go with Postgres for Acme Labs. Dr. Chen confirmed the requirements."},
		{Role: "assistant", Content: "Fixed the connection pooling bug in `pgbouncer` config for Acme Labs."},
	}

	out := NewAnalyzer().Analyze(Input{
		Messages:              messages,
		MaxMemoriesPerSession: 5,
		ImportanceThreshold:   0.9,
	})

	var foundOrg, foundConcept bool
	for _, e := range out.Entities {
		if e.Name == "Acme Labs" {
			foundOrg = true
			if e.Type != models.EntityOrganization {
				t.Errorf("Acme Labs classified as %s, want organization", e.Type)
			}
			if e.Frequency != 2 {
				t.Errorf("Acme Labs frequency = %d, want 2", e.Frequency)
			}
		}
		if e.Name == "pgbouncer" {
			foundConcept = true
		}
	}
	if !foundOrg {
		t.Error("expected Acme Labs entity")
	}
	if !foundConcept {
		t.Error("expected backticked pgbouncer entity")
	}

	types := map[models.EventType]bool{}
	for _, ev := range out.Events {
		types[ev.Type] = true
	}
	if !types[models.EventDesignDecided] {
		t.Error("expected design_decided event")
	}
	if !types[models.EventIssueResolved] {
		t.Error("expected issue_resolved event")
	}

	// High threshold with no intent markers: extraction must still report,
	// even with zero drafts.
	if out.Added != len(out.Drafts) {
		t.Errorf("counter mismatch: added=%d drafts=%d", out.Added, len(out.Drafts))
	}
}

func TestAnalyzePrivateBlocksStripped(t *testing.T) {
	out := NewAnalyzer().Analyze(Input{
		Messages: []models.Message{
			{Role: "user", Content: "<private>api_key=sk_000011112222333344445555</private>"},
			{Role: "user", Content: "Remember this: rotate staging credentials weekly."},
		},
		MaxMemoriesPerSession: 5,
		ImportanceThreshold:   0.3,
	})

	// The fully-private message contributes no segment.
	if out.Added+out.Filtered != 1 {
		t.Errorf("private-only message should not be considered: added=%d filtered=%d", out.Added, out.Filtered)
	}
	for _, d := range out.Drafts {
		if d.Content == "" {
			t.Error("empty draft content")
		}
	}
}
