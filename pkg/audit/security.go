// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventStatementRejected is logged when a statement fails type validation.
	EventStatementRejected SecurityEventType = "statement_rejected"
	// EventStatementExecution is logged for successful statement execution (can be high volume).
	EventStatementExecution SecurityEventType = "statement_execution"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	ConnectionID uuid.UUID         `json:"connection_id"`
	ClientIP     string            `json:"client_ip,omitempty"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace. The "security_audit" namespace makes filtering in SIEM systems
// straightforward.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a detected SQL injection attempt with full
// context. Logged at ERROR level with "critical" severity for immediate
// alerting.
func (a *SecurityAuditor) LogInjectionAttempt(connectionID uuid.UUID, details SQLInjectionDetails, clientIP string) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventSQLInjectionAttempt,
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		Details:      details,
		Severity:     "critical",
	}

	// Marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("connection_id", connectionID.String()),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("severity", "critical"),
	)
}

// LogStatementRejected records a statement that failed type validation.
// Logged at WARN level as these are typically user errors, not attacks.
func (a *SecurityAuditor) LogStatementRejected(connectionID uuid.UUID, reason, clientIP string) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventStatementRejected,
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		Details: map[string]string{
			"reason": reason,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Statement rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("connection_id", connectionID.String()),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// LogStatementExecution records a successful statement execution for the
// audit trail. Logged at INFO level; can generate high log volume in
// production.
func (a *SecurityAuditor) LogStatementExecution(connectionID uuid.UUID, statementType, clientIP string) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventStatementExecution,
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		Details: map[string]string{
			"statement_type": statementType,
		},
		Severity: "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Statement executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("connection_id", connectionID.String()),
		zap.String("statement_type", statementType),
		zap.String("client_ip", clientIP),
		zap.String("severity", "info"),
	)
}
