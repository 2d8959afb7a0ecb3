package review

// Status is the final verdict for one review item. PENDING is the
// mandatory "a human must decide" outcome and is never silently
// upgraded to PASS or FAIL.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusWarn    Status = "WARN"
	StatusPending Status = "PENDING"
)

type Dimension string

const (
	DimensionQualification   Dimension = "qualification"
	DimensionTechnical       Dimension = "technical"
	DimensionBusiness        Dimension = "business"
	DimensionPrice           Dimension = "price"
	DimensionDocStructure    Dimension = "doc_structure"
	DimensionScheduleQuality Dimension = "schedule_quality"
	DimensionOther           Dimension = "other"
	DimensionConsistency     Dimension = "consistency"
)

// EvalMethod is a closed set; every switch over it must handle all six
// members plus the unset default (which is treated as PRESENCE by the
// hard gate).
type EvalMethod string

const (
	EvalPresence     EvalMethod = "PRESENCE"
	EvalValidity     EvalMethod = "VALIDITY"
	EvalNumeric      EvalMethod = "NUMERIC"
	EvalTableCompare EvalMethod = "TABLE_COMPARE"
	EvalExactMatch   EvalMethod = "EXACT_MATCH"
	EvalSemantic     EvalMethod = "SEMANTIC"
)

// Evaluator names stamped on review items.
const (
	EvaluatorOutOfScope      = "out_of_scope"
	EvaluatorHardGate        = "hard_gate"
	EvaluatorQuantitative    = "quantitative"
	EvaluatorSemantic        = "semantic"
	EvaluatorSemanticPending = "semantic_pending"
	EvaluatorConsistency     = "consistency"
)

// Fixed ids for synthetic consistency findings.
const (
	ConsistencyCompanyNameID = "consistency_company_name"
	ConsistencyPriceID       = "consistency_price"
	ConsistencyDurationID    = "consistency_duration"
)

// NormKeyField is the reserved entry in Response.NormalizedFields that
// identifies which canonical field the response represents.
const NormKeyField = "_norm_key"

// ValueSchema declares the structured bound a requirement carries. Any
// of the bounds may be absent.
type ValueSchema struct {
	NormKey string   `json:"norm_key,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Const   *float64 `json:"const,omitempty"`
}

// Requirement is a read-only input produced by the extraction
// subsystem. The pipeline never mutates it.
type Requirement struct {
	RequirementID      string       `json:"requirement_id"`
	Dimension          Dimension    `json:"dimension"`
	Text               string       `json:"requirement_text"`
	IsHard             bool         `json:"is_hard"`
	MustReject         bool         `json:"must_reject"`
	EvalMethod         EvalMethod   `json:"eval_method"`
	ValueSchema        *ValueSchema `json:"value_schema,omitempty"`
	EvidenceSegmentIDs []string     `json:"evidence_segment_ids,omitempty"`
	Weight             float64      `json:"weight"`
}

// NormKey returns the declared canonical field id, or "" when the
// requirement has no structured schema.
func (r Requirement) NormKey() string {
	if r.ValueSchema == nil {
		return ""
	}
	return r.ValueSchema.NormKey
}

// Response is a read-only input: one extracted bid statement.
type Response struct {
	ID                 string          `json:"id"`
	Dimension          Dimension       `json:"dimension"`
	Text               string          `json:"response_text"`
	ExtractedValue     map[string]any  `json:"extracted_value,omitempty"`
	NormalizedFields   map[string]any  `json:"normalized_fields,omitempty"`
	EvidenceSegmentIDs []string        `json:"evidence_segment_ids,omitempty"`
	EvidenceEntries    []EvidenceEntry `json:"evidence_entries,omitempty"`
}

// NormKey returns the canonical field this response represents, or "".
func (r Response) NormKey() string {
	v, ok := r.NormalizedFields[NormKeyField]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

type EvidenceRole string

const (
	RoleTender EvidenceRole = "tender"
	RoleBid    EvidenceRole = "bid"
)

type EvidenceSource string

const (
	SourceDocSegments        EvidenceSource = "doc_segments"
	SourceFallbackChunk      EvidenceSource = "fallback_chunk"
	SourceDerivedConsistency EvidenceSource = "derived_consistency"
)

type EvidenceEntry struct {
	Role        EvidenceRole   `json:"role"`
	SegmentID   string         `json:"segment_id,omitempty"`
	AssetID     string         `json:"asset_id,omitempty"`
	PageStart   int            `json:"page_start,omitempty"`
	PageEnd     int            `json:"page_end,omitempty"`
	HeadingPath string         `json:"heading_path,omitempty"`
	Quote       string         `json:"quote,omitempty"`
	Source      EvidenceSource `json:"source"`
}

// SegmentRecord is what the segment store returns for one id.
type SegmentRecord struct {
	SegmentID    string `json:"segment_id"`
	AssetID      string `json:"asset_id"`
	ContentText  string `json:"content_text"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
	HeadingPath  string `json:"heading_path"`
	DocVersionID string `json:"doc_version_id"`
}

// Candidate is one scored (response, score) pair considered by the
// mapper for a requirement.
type Candidate struct {
	Response     *Response
	Score        float64
	Method       string
	KeywordScore int
	Jaccard      float64
}

// CandidateSet is the mapper output for one requirement. Best may be
// nil; the mapper never substitutes a guess when the requirement
// declares a norm key that no response carries.
type CandidateSet struct {
	RequirementID string
	Method        string
	Candidates    []Candidate
	Best          *Response
}

// Trace is the typed, method-specific explanation attached to every
// review item. Exactly the sub-traces relevant to the producing
// evaluator are populated.
type Trace struct {
	Scope       string            `json:"scope,omitempty"`
	Note        string            `json:"note,omitempty"`
	Mapping     *MappingTrace     `json:"mapping,omitempty"`
	Numeric     *NumericTrace     `json:"numeric,omitempty"`
	Semantic    *SemanticTrace    `json:"semantic,omitempty"`
	Consistency *ConsistencyTrace `json:"consistency,omitempty"`
}

type MappingTrace struct {
	Method       string           `json:"method"`
	KeywordFloor int              `json:"keyword_floor"`
	Candidates   []CandidateTrace `json:"candidates,omitempty"`
}

type CandidateTrace struct {
	ResponseID   string  `json:"response_id"`
	Score        float64 `json:"score"`
	KeywordScore int     `json:"keyword_score"`
	Jaccard      float64 `json:"jaccard"`
}

type NumericTrace struct {
	Actual          float64  `json:"actual"`
	ActualSource    string   `json:"actual_source"`
	Min             *float64 `json:"min,omitempty"`
	Max             *float64 `json:"max,omitempty"`
	Exact           *float64 `json:"exact,omitempty"`
	ThresholdSource string   `json:"threshold_source"`
	Passed          bool     `json:"passed"`
	Reasons         []string `json:"reasons,omitempty"`
}

type SemanticTrace struct {
	Question   string  `json:"question"`
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Gated      bool    `json:"gated"`
}

type ConsistencyTrace struct {
	Kind      string   `json:"kind"`
	Values    []string `json:"values,omitempty"`
	DiffRatio float64  `json:"diff_ratio,omitempty"`
}

// ReviewItem is the per-requirement (or synthetic) verdict. Items are
// created in bulk once per run and superseded, never updated, by the
// next run for the same bidder.
type ReviewItem struct {
	RequirementID     string          `json:"requirement_id"`
	MatchedResponseID string          `json:"matched_response_id,omitempty"`
	Dimension         Dimension       `json:"dimension"`
	Status            Status          `json:"status"`
	IsHard            bool            `json:"is_hard"`
	Remark            string          `json:"remark"`
	Evaluator         string          `json:"evaluator"`
	Trace             Trace           `json:"trace"`
	Evidence          []EvidenceEntry `json:"evidence,omitempty"`
	ReviewRunID       string          `json:"review_run_id"`
}

// Stats summarizes one run.
type Stats struct {
	Total       int            `json:"total"`
	Pass        int            `json:"pass"`
	Fail        int            `json:"fail"`
	Warn        int            `json:"warn"`
	Pending     int            `json:"pending"`
	ByEvaluator map[string]int `json:"by_evaluator,omitempty"`
}

// Thresholds carries the business constants of the pipeline. The
// defaults preserve the source behavior; they are configuration, not
// derived domain truth.
type Thresholds struct {
	ExactTolerance  float64
	PriceWarnRatio  float64
	ConfidenceFloor float64
	SemanticBatch   int
	SemanticWorkers int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ExactTolerance:  0.01,
		PriceWarnRatio:  0.005,
		ConfidenceFloor: 0.65,
		SemanticBatch:   15,
		SemanticWorkers: 6,
	}
}

const (
	CandidateTopK    = 5
	KeywordFloor     = 1
	NormKeyBaseScore = 1000.0
	EvidenceEntryCap = 5
	QuoteMaxChars    = 240
)
