package event

// Segment is one speaker turn of a transcribed call. StartTime/EndTime are
// seconds from call start; monotonically non-decreasing and non-overlapping
// per speaker within rounding.
type Segment struct {
	Speaker    string  `json:"speaker"` // agent | customer | unknown
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// CallReceivedPayload is carried on TopicCallsReceived.
type CallReceivedPayload struct {
	CallID        string  `json:"callId"`
	CallerID      string  `json:"callerId"`
	AgentID       string  `json:"agentId"`
	Channel       string  `json:"channel"`
	FileHandle    string  `json:"fileHandle"`
	FileFormat    string  `json:"fileFormat"`
	FileSizeBytes int64   `json:"fileSizeBytes"`
	Duration      float64 `json:"duration,omitempty"`
	StartTime     string  `json:"startTime"`
}

// CallTranscribedPayload is carried on TopicCallsTranscribed.
type CallTranscribedPayload struct {
	CallID     string    `json:"callId"`
	FullText   string    `json:"fullText"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
	WordCount  int       `json:"wordCount"`
	Segments   []Segment `json:"segments"`
}

// EscalationDetails pinpoints the sentiment drop that triggered an escalation.
type EscalationDetails struct {
	MaxDrop   float64 `json:"maxDrop"`
	FromScore float64 `json:"fromScore"`
	ToScore   float64 `json:"toScore"`
}

// SegmentSentiment is the sentiment reading for one transcript segment.
type SegmentSentiment struct {
	StartTime float64            `json:"startTime"`
	EndTime   float64            `json:"endTime"`
	Sentiment string             `json:"sentiment"`
	Score     float64            `json:"score"`
	Emotions  map[string]float64 `json:"emotions,omitempty"`
	Speaker   string             `json:"speaker"`
}

// SentimentAnalyzedPayload is carried on TopicCallsSentimentAnalyzed.
// PredictedChurnRisk is carried here (in addition to VocAnalyzedPayload)
// because the alert engine's escalation-vs-churn rule (spec §4.7) is
// evaluated off one SentimentAnalyzed event, per the worked example in
// spec §8 scenario 2; see DESIGN.md.
type SentimentAnalyzedPayload struct {
	CallID              string             `json:"callId"`
	OverallSentiment    string             `json:"overallSentiment"` // positive | neutral | negative
	SentimentScore      float64            `json:"sentimentScore"`   // [-1,1]
	EscalationDetected  bool               `json:"escalationDetected"`
	EscalationDetails   *EscalationDetails `json:"escalationDetails,omitempty"`
	PredictedChurnRisk  float64            `json:"predictedChurnRisk"` // [0,1]
	SegmentSentiments   []SegmentSentiment `json:"segmentSentiments"`
	ProcessingTimeMs    int64              `json:"processingTimeMs"`
}

// VocAnalyzedPayload is carried on TopicCallsVocAnalyzed.
type VocAnalyzedPayload struct {
	CallID              string   `json:"callId"`
	PrimaryIntent       string   `json:"primaryIntent"` // complaint|inquiry|compliment|request|other
	Topics              []string `json:"topics"`
	Keywords            []string `json:"keywords"`
	CustomerSatisfaction string  `json:"customerSatisfaction"` // low|medium|high
	PredictedChurnRisk  float64  `json:"predictedChurnRisk"`   // [0,1]
	ActionableItems     []string `json:"actionableItems"`
	Summary             string   `json:"summary"`
}

// ComplianceViolation is a single rule breach found while auditing a call.
type ComplianceViolation struct {
	RuleID          string  `json:"ruleId"`
	RuleName        string  `json:"ruleName"`
	Severity        string  `json:"severity"` // low|medium|high|critical
	Description     string  `json:"description"`
	TimestampInCall float64 `json:"timestampInCall,omitempty"`
	Evidence        string  `json:"evidence,omitempty"`
}

// CallAuditedPayload is carried on TopicCallsAudited.
type CallAuditedPayload struct {
	CallID                 string                `json:"callId"`
	OverallScore           int                   `json:"overallScore"` // 0..100
	ComplianceStatus       string                `json:"complianceStatus"` // passed|review_required|failed
	ScriptAdherence        int                   `json:"scriptAdherence"`
	CustomerService        int                   `json:"customerService"`
	ResolutionEffectiveness int                  `json:"resolutionEffectiveness"`
	FlagsForReview         bool                  `json:"flagsForReview"`
	ReviewReason           string                `json:"reviewReason,omitempty"`
	Violations             []ComplianceViolation `json:"violations"`
	ProcessingTimeMs       int64                 `json:"processingTimeMs"`
}
