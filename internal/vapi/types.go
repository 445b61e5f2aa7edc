package vapi

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model is replaced as a whole on update, so callers always send the full
// message list and tool ids. ToolIDs is never omitted: an empty list detaches
// every tool.
type Model struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages,omitempty"`
	ToolIDs     []string  `json:"toolIds"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
}

// SystemPrompt returns the content of the first system message.
func (m *Model) SystemPrompt() string {
	for _, msg := range m.Messages {
		if msg.Role == "system" {
			return msg.Content
		}
	}
	return ""
}

type Voice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type Server struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

type ArtifactPlan struct {
	StructuredOutputIDs []string `json:"structuredOutputIds"`
}

type Assistant struct {
	ID                 string            `json:"id,omitempty"`
	Name               string            `json:"name,omitempty"`
	FirstMessage       string            `json:"firstMessage,omitempty"`
	Model              *Model            `json:"model,omitempty"`
	Voice              *Voice            `json:"voice,omitempty"`
	MaxDurationSeconds int               `json:"maxDurationSeconds,omitempty"`
	EndCallPhrases     []string          `json:"endCallPhrases,omitempty"`
	Server             *Server           `json:"server,omitempty"`
	ArtifactPlan       *ArtifactPlan     `json:"artifactPlan,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

const ToolTypeQuery = "query"

type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type KnowledgeBase struct {
	Provider    string   `json:"provider"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FileIDs     []string `json:"fileIds"`
}

type Tool struct {
	ID             string          `json:"id,omitempty"`
	Type           string          `json:"type,omitempty"`
	Function       *ToolFunction   `json:"function,omitempty"`
	KnowledgeBases []KnowledgeBase `json:"knowledgeBases,omitempty"`
}

// FileIDs returns every file id referenced by the tool's knowledge bases.
func (t *Tool) FileIDs() []string {
	var ids []string
	for _, kb := range t.KnowledgeBases {
		ids = append(ids, kb.FileIDs...)
	}
	return ids
}

type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
}

type StructuredOutput struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
}

type PhoneNumber struct {
	ID               string `json:"id,omitempty"`
	Provider         string `json:"provider,omitempty"`
	Number           string `json:"number,omitempty"`
	Name             string `json:"name,omitempty"`
	TwilioAccountSID string `json:"twilioAccountSid,omitempty"`
	TwilioAuthToken  string `json:"twilioAuthToken,omitempty"`
	AssistantID      string `json:"assistantId,omitempty"`
}
