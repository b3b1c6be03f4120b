package harvester

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/colloquy/internal/models"
)

func TestTranscriber_RendersTurnsWithSpeakers(t *testing.T) {
	transcriber := NewTranscriber()

	conv := &models.Conversation{
		Platform: "chatgpt",
		ID:       "conv-1",
		Title:    "Badger basics",
		Started:  time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
		Turns: []models.Turn{
			{ID: "t1", Speaker: "user", Content: "How do I open a store?"},
			{ID: "t2", Speaker: "assistant", Content: "Use badgerhold.Open with default options."},
		},
	}

	out := transcriber.Render(conv)

	assert.Contains(t, out, "# Badger basics")
	assert.Contains(t, out, "_chatgpt, 2026-08-01 09:30 UTC_")
	assert.Contains(t, out, "## User")
	assert.Contains(t, out, "## Assistant")
	assert.Contains(t, out, "How do I open a store?")

	userIdx := strings.Index(out, "## User")
	assistantIdx := strings.Index(out, "## Assistant")
	assert.Less(t, userIdx, assistantIdx, "turns render in conversation order")
}

func TestTranscriber_TitleFallsBackToID(t *testing.T) {
	transcriber := NewTranscriber()

	out := transcriber.Render(&models.Conversation{
		Platform: "chatgpt",
		ID:       "conv-untitled",
		Turns:    []models.Turn{{ID: "t1", Speaker: "user", Content: "hi"}},
	})

	assert.Contains(t, out, "# conv-untitled")
}

func TestTranscriber_EmptyTurnsOmitted(t *testing.T) {
	transcriber := NewTranscriber()

	out := transcriber.Render(&models.Conversation{
		Platform: "chatgpt",
		ID:       "conv-2",
		Title:    "Sparse",
		Turns: []models.Turn{
			{ID: "t1", Speaker: "system", Content: ""},
			{ID: "t2", Speaker: "user", Content: "visible"},
		},
	})

	assert.NotContains(t, out, "## System")
	assert.Contains(t, out, "## User")
}

func TestTranscriber_SearchResultsAndCitations(t *testing.T) {
	transcriber := NewTranscriber()

	conv := &models.Conversation{
		Platform: "chatgpt",
		ID:       "conv-3",
		Title:    "Research",
		Turns: []models.Turn{
			{
				ID:      "t1",
				Speaker: "assistant",
				Content: "Here is what I found.",
				Search: &models.Search{
					Platform: "chatgpt",
					Query:    "go embedded database",
					Type:     "search",
					Results: []models.Result{
						{Title: "Badger", URL: "https://example.com/badger", Preview: "<p>A fast   <b>KV</b> store</p>", Index: 0},
						{Title: "Bolt", URL: "https://example.com/bolt", Index: 1},
					},
				},
				Citations: []models.Citation{
					{Title: "Badger docs", URL: "https://example.com/docs", Source: "example.com"},
				},
			},
		},
	}

	out := transcriber.Render(conv)

	assert.Contains(t, out, "**Searched** (search): go embedded database")
	assert.Contains(t, out, "0. [Badger](https://example.com/badger)")
	assert.Contains(t, out, "A fast **KV** store", "HTML preview converts to markdown with whitespace collapsed")
	assert.Contains(t, out, "1. [Bolt](https://example.com/bolt)\n")
	assert.Contains(t, out, "**Sources**")
	assert.Contains(t, out, "- [Badger docs](https://example.com/docs) (example.com)")
}
