// Package engine implements the document workflow's stage graph: the
// Plan -> Draft -> Citation -> Grammar -> Readability pipeline, its gate
// evaluation, and the append-only rollback/retry policy.
package engine

import "time"

type DocumentStatus string

const (
	StatusIdle             DocumentStatus = "Idle"
	StatusPlanning         DocumentStatus = "Planning"
	StatusDrafting         DocumentStatus = "Drafting"
	StatusCitationCheck    DocumentStatus = "CitationCheck"
	StatusGrammarCheck     DocumentStatus = "GrammarCheck"
	StatusReadabilityCheck DocumentStatus = "ReadabilityCheck"
	StatusDone             DocumentStatus = "Done"
	StatusFailed           DocumentStatus = "Failed"
)

// IsTerminal reports whether a Document in this status can be (re)started.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusIdle || s == StatusDone || s == StatusFailed
}

type NodeType string

const (
	NodeTypePlan        NodeType = "Plan"
	NodeTypeDraft       NodeType = "Draft"
	NodeTypeCitation    NodeType = "Citation"
	NodeTypeGrammar     NodeType = "Grammar"
	NodeTypeReadability NodeType = "Readability"
	NodeTypeUserEdit    NodeType = "UserEdit"
	NodeTypePlugin      NodeType = "Plugin"
)

type NodeStatus string

const (
	NodeStatusPending NodeStatus = "Pending"
	NodeStatusRunning NodeStatus = "Running"
	NodeStatusPass    NodeStatus = "Pass"
	NodeStatusFail    NodeStatus = "Fail"
)

// WritingMode is the config field feeding the LLM Gateway's prompt
// templating and the Plan/Draft stages.
type WritingMode string

const (
	WritingModeAcademic WritingMode = "academic"
	WritingModeBlog      WritingMode = "blog"
	WritingModeSocial    WritingMode = "social"
)

// Config holds the per-document pipeline tunables named in the data model.
type Config struct {
	ReadabilityThreshold float64     `json:"readability_threshold"`
	MaxRetries           int         `json:"max_retries"`
	AutoRun              bool        `json:"auto_run"`
	TimeoutSeconds       int         `json:"timeout_seconds"`
	WritingMode          WritingMode `json:"writing_mode"`
	TargetWordCount      int         `json:"target_word_count"`
}

// DefaultConfig mirrors the defaults named in the data model.
func DefaultConfig() Config {
	return Config{
		ReadabilityThreshold: 70,
		MaxRetries:           3,
		AutoRun:              true,
		TimeoutSeconds:       60,
		WritingMode:          WritingModeBlog,
		TargetWordCount:      800,
	}
}

type Document struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Status    DocumentStatus `json:"status"`
	Config    Config         `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Node struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Type       NodeType   `json:"type"`
	Status     NodeStatus `json:"status"`
	Content    string     `json:"content"`
	ParentID   string     `json:"parent_id,omitempty"`
	Branch     string     `json:"branch,omitempty"`
	RetryCount int        `json:"retry_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NodeMetrics is 1:1 with a Node.
type NodeMetrics struct {
	NodeID            string        `json:"node_id" db:"node_id"`
	ReadabilityScore  float64       `json:"readability_score" db:"readability_score"`
	GrammarErrors     int           `json:"grammar_errors" db:"grammar_errors"`
	CitationCount     int           `json:"citation_count" db:"citation_count"`
	ValidationRate    float64       `json:"validation_rate,omitempty" db:"validation_rate"`
	WordCount         int           `json:"word_count" db:"word_count"`
	TokenUsage        int           `json:"token_usage" db:"token_usage"`
	ProcessingTimeMs  int64         `json:"processing_time_ms" db:"processing_time_ms"`
}

// Snapshot is the response shape for status().
type Snapshot struct {
	DocumentID  string         `json:"document_id"`
	Status      DocumentStatus `json:"status"`
	Progress    float64        `json:"progress"`
	CurrentNode *Node          `json:"current_node,omitempty"`
	Nodes       []Node         `json:"nodes"`
}

// stageOrder is the fixed pipeline sequence gates progress through.
var stageOrder = []NodeType{
	NodeTypePlan,
	NodeTypeDraft,
	NodeTypeCitation,
	NodeTypeGrammar,
	NodeTypeReadability,
}

func stageIndex(t NodeType) int {
	for i, s := range stageOrder {
		if s == t {
			return i
		}
	}
	return -1
}

// statusForStage is the Document.status a stage sets while it is running.
var statusForStage = map[NodeType]DocumentStatus{
	NodeTypePlan:        StatusPlanning,
	NodeTypeDraft:       StatusDrafting,
	NodeTypeCitation:    StatusCitationCheck,
	NodeTypeGrammar:     StatusGrammarCheck,
	NodeTypeReadability: StatusReadabilityCheck,
}
