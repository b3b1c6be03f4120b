package harvester

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/colloquy/internal/models"
)

// rootNodeID is the synthetic root the platform inserts into every
// conversation graph
const rootNodeID = "client-created-root"

// Linearize flattens one raw conversation document into the normalized
// Conversation model. The node graph is walked breadth-first from the
// synthetic root; only message-bearing nodes materialize into turns, but
// structural nodes still enqueue their children. Sibling branches therefore
// interleave by depth rather than strict chronology - that is the documented
// linearization policy, with parent links preserved on every turn so a
// consumer can re-derive branch structure.
//
// Pure transform: no network, no persistence.
func Linearize(doc *models.ChatGPTConversation, platform string) (*models.Conversation, error) {
	if doc == nil || len(doc.Mapping) == 0 {
		return nil, fmt.Errorf("conversation has no node mapping: %w", ErrMalformedDocument)
	}

	rootID, err := findRoot(doc.Mapping)
	if err != nil {
		return nil, err
	}

	started := epochToTime(doc.CreateTime)

	conv := &models.Conversation{
		Platform: platform,
		ID:       doc.ConversationID,
		Title:    doc.Title,
		Started:  started,
		Ended:    started,
		Metadata: map[string]interface{}{
			"update_time": doc.UpdateTime,
		},
	}

	queue := []string{rootID}
	visited := make(map[string]bool, len(doc.Mapping))

	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]

		if visited[nodeID] {
			continue
		}
		visited[nodeID] = true

		node, ok := doc.Mapping[nodeID]
		if !ok {
			// Dangling child reference; tolerated
			continue
		}

		if node.Message != nil {
			turn := buildTurn(node, doc, platform)
			conv.Turns = append(conv.Turns, turn)

			if turn.When.After(conv.Ended) {
				conv.Ended = turn.When
			}
			if turn.When.Before(conv.Started) {
				conv.Started = turn.When
			}
		}

		queue = append(queue, node.Children...)
	}

	return conv, nil
}

// findRoot returns the well-known synthetic root id, falling back to the
// unique parentless node when the platform omits it
func findRoot(mapping map[string]models.ChatGPTNode) (string, error) {
	if _, ok := mapping[rootNodeID]; ok {
		return rootNodeID, nil
	}

	rootID := ""
	for id, node := range mapping {
		if node.Parent == "" {
			if rootID != "" {
				return "", fmt.Errorf("multiple parentless nodes and no synthetic root: %w", ErrMalformedDocument)
			}
			rootID = id
		}
	}
	if rootID == "" {
		return "", fmt.Errorf("no root node found: %w", ErrMalformedDocument)
	}
	return rootID, nil
}

// buildTurn materializes one message-bearing node
func buildTurn(node models.ChatGPTNode, doc *models.ChatGPTConversation, platform string) models.Turn {
	msg := node.Message

	when := epochToTime(msg.CreateTime)
	if msg.CreateTime == 0 {
		when = epochToTime(doc.CreateTime)
	}

	turn := models.Turn{
		ID:       msg.ID,
		ParentID: node.Parent,
		Speaker:  msg.Author.Role,
		When:     when,
		Content:  messageText(msg.Content),
	}

	metadata := make(map[string]interface{})
	if msg.Content.ContentType != "" {
		metadata["content_type"] = msg.Content.ContentType
	}
	if msg.Metadata.ModelSlug != "" {
		metadata["model_slug"] = msg.Metadata.ModelSlug
	}
	if len(metadata) > 0 {
		turn.Metadata = metadata
	}

	if len(msg.Metadata.SearchResultGroups) > 0 {
		turn.Search = buildSearch(msg.Metadata, platform)
	}
	if len(msg.Metadata.ContentReferences) > 0 {
		turn.Citations = buildCitations(msg.Metadata.ContentReferences)
	}

	return turn
}

// messageText joins multi-part text content, falling back to the single text
// field. Non-string parts (multimodal payloads) are skipped.
func messageText(content models.ChatGPTContent) string {
	if len(content.Parts) > 0 {
		parts := make([]string, 0, len(content.Parts))
		for _, part := range content.Parts {
			if text, ok := part.(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return content.Text
}

// buildSearch accumulates one Search record across all result groups of a
// node; each result's rank comes from the nested reference index.
func buildSearch(meta models.ChatGPTMessageMetadata, platform string) *models.Search {
	search := &models.Search{
		Platform: platform,
		Query:    joinDistinct(queries(meta.SearchQueries)),
		Type:     joinDistinct(groupTypes(meta.SearchResultGroups)),
	}

	for _, group := range meta.SearchResultGroups {
		for _, entry := range group.Entries {
			result := models.Result{
				Title:   entry.Title,
				URL:     entry.URL,
				Preview: entry.Snippet,
				Index:   entry.RefID.RefIndex,
			}

			resultMeta := make(map[string]interface{})
			if group.Domain != "" {
				resultMeta["domain"] = group.Domain
			}
			if entry.Attribution != "" {
				resultMeta["attribution"] = entry.Attribution
			}
			if len(resultMeta) > 0 {
				result.Metadata = resultMeta
			}

			search.Results = append(search.Results, result)
		}
	}

	return search
}

// buildCitations flattens reference entries into an ordered citation list.
// Source is the item's own attribution unless the entry carries a multi-value
// attributions list, which wins comma-joined.
func buildCitations(refs []models.ChatGPTContentReference) []models.Citation {
	var citations []models.Citation
	for _, ref := range refs {
		listSource := strings.Join(ref.Attributions, ", ")
		for _, item := range ref.Items {
			source := item.Attribution
			if listSource != "" {
				source = listSource
			}
			citations = append(citations, models.Citation{
				Title:  item.Title,
				URL:    item.URL,
				Source: source,
			})
		}
	}
	return citations
}

func queries(sq []models.ChatGPTSearchQuery) []string {
	out := make([]string, 0, len(sq))
	for _, q := range sq {
		if q.Query != "" {
			out = append(out, q.Query)
		}
	}
	return out
}

func groupTypes(groups []models.ChatGPTSearchResultGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Type != "" {
			out = append(out, g.Type)
		}
	}
	return out
}

// joinDistinct joins values with "; " preserving first-seen order
func joinDistinct(values []string) string {
	seen := make(map[string]bool, len(values))
	distinct := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}
	return strings.Join(distinct, "; ")
}

// epochToTime converts platform epoch seconds (fractional) to a time.Time
func epochToTime(epoch float64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
