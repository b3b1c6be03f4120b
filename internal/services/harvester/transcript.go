package harvester

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/colloquy/internal/models"
)

// Transcriber renders a normalized conversation as a markdown transcript for
// markdown-first consumers. Search result previews sometimes arrive as HTML
// fragments; those are converted, everything else passes through untouched.
type Transcriber struct {
	converter *md.Converter
}

// NewTranscriber creates a transcriber
func NewTranscriber() *Transcriber {
	return &Transcriber{
		converter: md.NewConverter("", true, nil),
	}
}

// Render produces the markdown transcript: title, speaker-labelled turns in
// linearization order, search and citation footnotes per turn.
func (t *Transcriber) Render(conv *models.Conversation) string {
	var b strings.Builder

	title := conv.Title
	if title == "" {
		title = conv.ID
	}
	fmt.Fprintf(&b, "# %s\n", title)
	if !conv.Started.IsZero() {
		fmt.Fprintf(&b, "\n_%s, %s_\n", conv.Platform, conv.Started.Format("2006-01-02 15:04 MST"))
	}

	for _, turn := range conv.Turns {
		if turn.Content == "" && turn.Search == nil && len(turn.Citations) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s\n", speakerLabel(turn.Speaker))
		if turn.Content != "" {
			fmt.Fprintf(&b, "\n%s\n", turn.Content)
		}

		if turn.Search != nil && len(turn.Search.Results) > 0 {
			fmt.Fprintf(&b, "\n**Searched** (%s): %s\n\n", turn.Search.Type, turn.Search.Query)
			for _, result := range turn.Search.Results {
				fmt.Fprintf(&b, "%d. [%s](%s)", result.Index, result.Title, result.URL)
				if preview := t.preview(result.Preview); preview != "" {
					fmt.Fprintf(&b, " - %s", preview)
				}
				b.WriteString("\n")
			}
		}

		if len(turn.Citations) > 0 {
			b.WriteString("\n**Sources**\n\n")
			for _, citation := range turn.Citations {
				fmt.Fprintf(&b, "- [%s](%s)", citation.Title, citation.URL)
				if citation.Source != "" {
					fmt.Fprintf(&b, " (%s)", citation.Source)
				}
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// preview normalizes a result preview to a single markdown line
func (t *Transcriber) preview(raw string) string {
	preview := strings.TrimSpace(raw)
	if preview == "" {
		return ""
	}

	if strings.Contains(preview, "<") && strings.Contains(preview, ">") {
		if converted, err := t.converter.ConvertString(preview); err == nil {
			preview = strings.TrimSpace(converted)
		}
	}

	return strings.Join(strings.Fields(preview), " ")
}

func speakerLabel(role string) string {
	switch role {
	case "":
		return "Unknown"
	default:
		return strings.ToUpper(role[:1]) + role[1:]
	}
}
