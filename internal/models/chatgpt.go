package models

// Wire types for the ChatGPT private backend API. Field coverage is
// intentionally partial: only what the harvester reads is declared, everything
// else is ignored by the JSON decoder.

// ChatGPTIndexResponse is the paginated conversation index
type ChatGPTIndexResponse struct {
	Items  []ChatGPTIndexItem `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ChatGPTIndexItem is one entry of the conversation index
type ChatGPTIndexItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	UpdateTime string `json:"update_time"`
}

// ChatGPTConversation is one raw conversation document: a node graph keyed by
// node id, plus document-level metadata. Timestamps are epoch seconds.
type ChatGPTConversation struct {
	ConversationID string                 `json:"conversation_id"`
	Title          string                 `json:"title"`
	CreateTime     float64                `json:"create_time"`
	UpdateTime     float64                `json:"update_time"`
	Mapping        map[string]ChatGPTNode `json:"mapping"`
}

// ChatGPTNode is a single node of the conversation graph. Structural nodes
// (root and system placeholders) carry a nil Message.
type ChatGPTNode struct {
	ID       string          `json:"id"`
	Message  *ChatGPTMessage `json:"message"`
	Parent   string          `json:"parent"`
	Children []string        `json:"children"`
}

// ChatGPTMessage is the message payload of a node
type ChatGPTMessage struct {
	ID         string                 `json:"id"`
	Author     ChatGPTAuthor          `json:"author"`
	CreateTime float64                `json:"create_time"`
	Content    ChatGPTContent         `json:"content"`
	Metadata   ChatGPTMessageMetadata `json:"metadata"`
}

// ChatGPTAuthor identifies the message author
type ChatGPTAuthor struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// ChatGPTContent is the message body. Text-style messages carry Parts;
// some tool messages carry a single Text field instead. Parts may contain
// non-string entries for multimodal messages, which the harvester skips.
type ChatGPTContent struct {
	ContentType string        `json:"content_type"`
	Parts       []interface{} `json:"parts"`
	Text        string        `json:"text"`
}

// ChatGPTMessageMetadata is the per-message metadata bag the harvester
// derives search and citation sub-records from
type ChatGPTMessageMetadata struct {
	SearchQueries      []ChatGPTSearchQuery       `json:"search_queries"`
	SearchResultGroups []ChatGPTSearchResultGroup `json:"search_result_groups"`
	ContentReferences  []ChatGPTContentReference  `json:"content_references"`
	ModelSlug          string                     `json:"model_slug,omitempty"`
}

// ChatGPTSearchQuery is one issued search query
type ChatGPTSearchQuery struct {
	Type  string `json:"type"`
	Query string `json:"q"`
}

// ChatGPTSearchResultGroup groups search results by engine/domain
type ChatGPTSearchResultGroup struct {
	Type    string               `json:"type"`
	Domain  string               `json:"domain"`
	Entries []ChatGPTSearchEntry `json:"entries"`
}

// ChatGPTSearchEntry is one search result within a group
type ChatGPTSearchEntry struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Snippet     string       `json:"snippet"`
	Attribution string       `json:"attribution"`
	RefID       ChatGPTRefID `json:"ref_id"`
}

// ChatGPTRefID carries the rank of a search result
type ChatGPTRefID struct {
	RefType  string `json:"ref_type"`
	RefIndex int    `json:"ref_index"`
}

// ChatGPTContentReference is one citation block attached to a message
type ChatGPTContentReference struct {
	MatchedText  string                 `json:"matched_text"`
	Attributions []string               `json:"attributions"`
	Items        []ChatGPTReferenceItem `json:"items"`
}

// ChatGPTReferenceItem is one cited source inside a reference block
type ChatGPTReferenceItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}
