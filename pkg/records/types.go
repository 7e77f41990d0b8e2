// Package records defines the canonical record kinds of the trust spine and
// the RecordFactory constructors that build them: fresh UUIDv4 id, RFC 3339
// UTC timestamp, kind-specific invariant checks, and an immutable_hash
// computed over canonical bytes with {immutable_hash, ledger_entry_id}
// excluded.
package records

// excludedFromHash lists the fields never included in a record's
// immutable_hash computation.
var excludedFromHash = []string{"immutable_hash", "ledger_entry_id"}

// RoutingAction enumerates the Router's possible decisions.
type RoutingAction string

const (
	ActionNotify   RoutingAction = "notify"
	ActionEscalate RoutingAction = "escalate"
	ActionRoute    RoutingAction = "route"
	ActionSuppress RoutingAction = "suppress"
)

// Authority enumerates the required-authority levels a rule or command can
// carry.
type Authority string

const (
	AuthorityNone  Authority = "NONE"
	AuthoritySoc   Authority = "SOC"
	AuthorityHuman Authority = "HUMAN"
)

// SeverityBand is the discrete risk-score label.
type SeverityBand string

const (
	BandLow      SeverityBand = "LOW"
	BandModerate SeverityBand = "MODERATE"
	BandHigh     SeverityBand = "HIGH"
	BandCritical SeverityBand = "CRITICAL"
)

// DeltaType enumerates the five UBA drift classifications. Classification is
// type-only: it never asserts severity, intent, or threat.
type DeltaType string

const (
	DeltaNewEventType    DeltaType = "NEW_EVENT_TYPE"
	DeltaNewHost         DeltaType = "NEW_HOST"
	DeltaNewTimeBucket   DeltaType = "NEW_TIME_BUCKET"
	DeltaNewPrivilege    DeltaType = "NEW_PRIVILEGE"
	DeltaFrequencyShift  DeltaType = "FREQUENCY_SHIFT"
)

// ZeroHash is the genesis / "no prior record" sentinel: 64 hex zero chars.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// LedgerEntry mirrors spec.md §3. signature is excluded from its own hash
// by AuditLedger's chaining logic, not by immutable_hash (a
// LedgerEntry is not itself content-addressed the way domain records are —
// it is chained by prev_entry_hash instead).
type LedgerEntry struct {
	EntryID       string `json:"entry_id"`
	Seq           uint64 `json:"seq"`
	PrevEntryHash string `json:"prev_entry_hash"`
	RecordKind    string `json:"record_kind"`
	RecordRef     string `json:"record_ref"`
	Timestamp     string `json:"timestamp"`
	SignerKeyID   string `json:"signer_key_id"`
	Signature     string `json:"signature"`
}

// PolicyBundle mirrors spec.md §3.
type PolicyBundle struct {
	BundleID       string  `json:"bundle_id"`
	BundleVersion  string  `json:"bundle_version"`
	AuthorityScope []string `json:"authority_scope"`
	CreatedBy      string  `json:"created_by"`
	CreatedAt      string  `json:"created_at"`
	Rules          []Rule  `json:"rules"`
	BundleKeyID    string  `json:"bundle_key_id"`
	BundleSignature string `json:"bundle_signature"`
}

// Rule mirrors spec.md §3.
type Rule struct {
	RuleID                string    `json:"rule_id"`
	Priority              int       `json:"priority"`
	MatchPredicates       []string  `json:"match_predicates"`
	AllowedActions        []string  `json:"allowed_actions"`
	RequiredAuthority     Authority `json:"required_authority"`
	ExplanationTemplateID string    `json:"explanation_template_id"`
}

// Alert mirrors spec.md §3.
type Alert struct {
	AlertID         string  `json:"alert_id"`
	IncidentID      string  `json:"incident_id"`
	PolicyRuleID    string  `json:"policy_rule_id"`
	Severity        string  `json:"severity"`
	RiskScoreAtEmit float64 `json:"risk_score_at_emit"`
	EmittedAt       string  `json:"emitted_at"`
	ImmutableHash   string  `json:"immutable_hash"`
	PrevAlertHash   string  `json:"prev_alert_hash"`
}

// RoutingDecision mirrors spec.md §3.
type RoutingDecision struct {
	DecisionID          string        `json:"decision_id"`
	AlertID             string        `json:"alert_id"`
	RuleID              string        `json:"rule_id"`
	RoutingAction        RoutingAction `json:"routing_action"`
	RequiredAuthority    Authority     `json:"required_authority"`
	ExplanationReference string        `json:"explanation_reference"`
	DecisionTimestamp    string        `json:"decision_timestamp"`
	LedgerEntryID        string        `json:"ledger_entry_id,omitempty"`
}

// CommandPayload is the part of a Command that gets signed.
type CommandPayload struct {
	CommandID      string `json:"command_id"`
	CommandType    string `json:"command_type"`
	Target         string `json:"target"`
	IncidentID     string `json:"incident_id"`
	PolicyID       string `json:"policy_id"`
	PolicyVersion  string `json:"policy_version"`
	IssuingAuthority Authority `json:"issuing_authority"`
	Timestamp      string `json:"timestamp"`
}

// Command mirrors spec.md §3: a signed payload envelope.
type Command struct {
	Payload         CommandPayload `json:"payload"`
	Signature       string         `json:"signature"`
	SigningKeyID    string         `json:"signing_key_id"`
	SigningAlgorithm string        `json:"signing_algorithm"`
	SignedAt        string         `json:"signed_at"`
}

// RollbackArtifact mirrors spec.md §3.
type RollbackArtifact struct {
	OriginalStateSnapshot map[string]interface{} `json:"original_state_snapshot"`
	RollbackType          string                  `json:"rollback_type"`
	ExecutionResult       map[string]interface{}  `json:"execution_result,omitempty"`
	RollbackToken         string                  `json:"rollback_token"`
}

// ForensicArtifact mirrors spec.md §3: content-addressed by SHA256 of file
// bytes, deterministically compressed (gzip, fixed mtime, stripped
// filename).
type ForensicArtifact struct {
	ArtifactID     string `json:"artifact_id"`
	SourcePath     string `json:"source_path"`
	ContentHash    string `json:"content_hash"`
	CompressedHash string `json:"compressed_hash"`
	CompressedSize int64  `json:"compressed_size"`
	CollectedAt    string `json:"collected_at"`
}

// RiskScore mirrors spec.md §3.
type RiskScore struct {
	ScoreID         string             `json:"score_id"`
	IdentityID      string             `json:"identity_id"`
	RawComponents   map[string]float64 `json:"raw_components"`
	NormalizedScore float64            `json:"normalized_score"`
	SeverityBand    SeverityBand       `json:"severity_band"`
	Confidence      float64            `json:"confidence"`
	Timestamp       string             `json:"timestamp"`
}

// HostEvent / ProcessEvent supplement spec.md §1's "host/process events"
// input kind, grounded on original_source/hnmp/engine/*_normalizer.py.
type HostEvent struct {
	EventID       string            `json:"event_id"`
	HostID        string            `json:"host_id"`
	ObservedAt    string            `json:"observed_at"`
	EventType     string            `json:"event_type"`
	Attributes    map[string]string `json:"attributes"`
	ImmutableHash string            `json:"immutable_hash"`
}

type ProcessEvent struct {
	EventID       string            `json:"event_id"`
	HostID        string            `json:"host_id"`
	Pid           int               `json:"pid"`
	ObservedAt    string            `json:"observed_at"`
	EventType     string            `json:"event_type"`
	Attributes    map[string]string `json:"attributes"`
	ImmutableHash string            `json:"immutable_hash"`
}

// Interaction supplements the deception signal, grounded on
// original_source/deception/engine/interaction_collector.py.
type Interaction struct {
	InteractionID   string `json:"interaction_id"`
	DecoyID         string `json:"decoy_id"`
	ObservedAt      string `json:"observed_at"`
	InteractionType string `json:"interaction_type"`
	SourceContextID string `json:"source_context_id"`
	ImmutableHash   string `json:"immutable_hash"`
}

// Report is the signed export record, grounded on
// original_source/signed-reporting/.
type Report struct {
	ReportID        string `json:"report_id"`
	ReportKind      string `json:"report_kind"`
	GeneratedAt     string `json:"generated_at"`
	SubjectRef      string `json:"subject_ref"`
	BodyHash        string `json:"body_hash"`
	ReportKeyID     string `json:"report_key_id"`
	ReportSignature string `json:"report_signature"`
}

// PlaybookExecution supplements incident-response playbook tracking,
// grounded on original_source/incident-response/{crypto/playbook_signer.py,
// cli/rollback_playbook.py}.
type PlaybookExecution struct {
	ExecutionID       string   `json:"execution_id"`
	PlaybookID        string   `json:"playbook_id"`
	IncidentID        string   `json:"incident_id"`
	Steps             []string `json:"steps"`
	StartedAt         string   `json:"started_at"`
	CompletedAt       string   `json:"completed_at,omitempty"`
	Outcome           string   `json:"outcome,omitempty"`
	PlaybookKeyID     string   `json:"playbook_key_id"`
	PlaybookSignature string   `json:"playbook_signature"`
}

// SuppressionRecord mirrors spec.md §4.11.
type SuppressionRecord struct {
	SuppressionID     string `json:"suppression_id"`
	AlertID           string `json:"alert_id"`
	PolicyRuleID      string `json:"policy_rule_id"`
	SuppressionReason string `json:"suppression_reason"`
	SuppressedAt      string `json:"suppressed_at"`
	SuppressedBy      string `json:"suppressed_by"`
	LedgerEntryID     string `json:"ledger_entry_id,omitempty"`
}

// Baseline is the UBA observed-feature multiset hash, spec.md §4.12.
type Baseline struct {
	BaselineID   string   `json:"baseline_id"`
	IdentityID   string   `json:"identity_id"`
	EventTypes   []string `json:"event_types"`
	Hosts        []string `json:"hosts"`
	TimeBuckets  []string `json:"time_buckets"`
	Privileges   []string `json:"privileges"`
	BaselineHash string   `json:"baseline_hash"`
	ComputedAt   string   `json:"computed_at"`
}

// Delta is a single classified drift observation, spec.md §4.12.
type Delta struct {
	DeltaID       string    `json:"delta_id"`
	IdentityID    string    `json:"identity_id"`
	DeltaType     DeltaType `json:"delta_type"`
	WindowStart   string    `json:"window_start"`
	WindowEnd     string    `json:"window_end"`
	PriorHash     string    `json:"prior_hash"`
	NewHash       string    `json:"new_hash"`
	ObservedAt    string    `json:"observed_at"`
	ImmutableHash string    `json:"immutable_hash"`
}

// Signal aggregates delta_ids and explicit external context references,
// spec.md §4.12. It never mutates referenced entities.
type Signal struct {
	SignalID      string   `json:"signal_id"`
	IdentityID    string   `json:"identity_id"`
	DeltaIDs      []string `json:"delta_ids"`
	ContextIDs    []string `json:"context_ids"`
	ComposedAt    string   `json:"composed_at"`
	ImmutableHash string   `json:"immutable_hash"`
}
