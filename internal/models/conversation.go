package models

import (
	"time"
)

// Conversation represents a normalized conversation harvested from a chat
// platform. Turns are in linearization order (breadth-first over the
// platform's node graph), not necessarily timestamp order; parent links are
// preserved on each turn so downstream consumers can reconstruct branches.
type Conversation struct {
	Platform string                 `json:"platform"`
	ID       string                 `json:"id"`
	Title    string                 `json:"title,omitempty"`
	Started  time.Time              `json:"started"`
	Ended    time.Time              `json:"ended"`
	Turns    []Turn                 `json:"turns"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Turn is a single message-bearing node of a conversation
type Turn struct {
	ID        string                 `json:"id"`
	ParentID  string                 `json:"parent_id,omitempty"`
	Speaker   string                 `json:"speaker"`
	When      time.Time              `json:"when"`
	Content   string                 `json:"content,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Search    *Search                `json:"search,omitempty"`
	Citations []Citation             `json:"citations,omitempty"`
}

// Search captures the web-search activity attached to a turn
type Search struct {
	Platform string   `json:"platform"`
	Query    string   `json:"query"`
	Type     string   `json:"type"` // engine name(s), "; "-joined
	Results  []Result `json:"results"`
}

// Result is a single ranked search result
type Result struct {
	Title    string                 `json:"title"`
	URL      string                 `json:"url"`
	Preview  string                 `json:"preview,omitempty"`
	Index    int                    `json:"index"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Citation is a source reference embedded in a turn's content
type Citation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// ConversationEvent is the payload published on the event bus for each
// conversation that passed the change detector
type ConversationEvent struct {
	EventID      string        `json:"event_id"`
	Name         string        `json:"name"`
	Date         time.Time     `json:"date"`
	Conversation *Conversation `json:"conversation"`

	// Transcript is a markdown rendering of the conversation for
	// markdown-first consumers
	Transcript string `json:"transcript,omitempty"`
}
