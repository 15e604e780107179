// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant session events in structured JSON format for easy
// parsing and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a parameter value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventBindingFailure is logged when a parameter cannot be bound.
	EventBindingFailure SecurityEventType = "binding_failure"
	// EventTransactionRollback is logged when a batch is rolled back.
	EventTransactionRollback SecurityEventType = "transaction_rollback"
)

// maxValueLen bounds parameter values copied into events.
const maxValueLen = 200

// Source identifies the session an event came from.
type Source struct {
	SessionID uuid.UUID `json:"session_id"`
	Database  string    `json:"database"` // type/name, e.g. "mysql/shop"
}

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Source    Source            `json:"source"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a suspicious parameter value.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Query       string `json:"query"`
}

// RollbackDetails describes a rolled back batch.
type RollbackDetails struct {
	Statements int    `json:"statements"`
	TestMode   bool   `json:"test_mode"`
	Cause      string `json:"cause,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor logging under the
// "security_audit" namespace. A nil logger discards events.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) event(eventType SecurityEventType, src Source, details any, severity string) string {
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Source:    src,
		Details:   details,
		Severity:  severity,
	})
	return string(eventJSON)
}

// LogInjectionAttempt records a parameter value that looks like SQL injection.
// It is logged at ERROR level with "critical" severity. The value and query
// are truncated, and inline passwords in the query are redacted.
func (a *SecurityAuditor) LogInjectionAttempt(src Source, details InjectionDetails) {
	details.ParamValue = logging.TruncateString(details.ParamValue, maxValueLen)
	details.Query = logging.SanitizeQuery(details.Query)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", a.event(EventSQLInjectionAttempt, src, details, "critical")),
		zap.String("session_id", src.SessionID.String()),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", "critical"),
	)
}

// LogBindingFailure records a parameter that could not be bound.
// These are usually caller mistakes, so they are logged at WARN level.
func (a *SecurityAuditor) LogBindingFailure(src Source, param, reason string) {
	details := map[string]string{"param_name": param, "reason": reason}

	a.logger.Warn("Parameter binding failed",
		zap.String("event_json", a.event(EventBindingFailure, src, details, "warning")),
		zap.String("session_id", src.SessionID.String()),
		zap.String("param_name", param),
		zap.String("severity", "warning"),
	)
}

// LogRollback records a rolled back batch. A test-mode rollback is expected
// and logged at INFO; any other is a WARN.
func (a *SecurityAuditor) LogRollback(src Source, details RollbackDetails) {
	severity := "warning"
	log := a.logger.Warn
	if details.TestMode && details.Cause == "" {
		severity = "info"
		log = a.logger.Info
	}
	details.Cause = logging.TruncateString(details.Cause, maxValueLen)

	log("Transaction rolled back",
		zap.String("event_json", a.event(EventTransactionRollback, src, details, severity)),
		zap.String("session_id", src.SessionID.String()),
		zap.Int("statements", details.Statements),
		zap.Bool("test_mode", details.TestMode),
		zap.String("severity", severity),
	)
}
