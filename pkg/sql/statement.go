package sql

import (
	"regexp"
	"strings"
)

// StatementType represents the type of SQL statement.
type StatementType string

const (
	TypeSelect  StatementType = "SELECT"
	TypeInsert  StatementType = "INSERT"
	TypeUpdate  StatementType = "UPDATE"
	TypeDelete  StatementType = "DELETE"
	TypeCall    StatementType = "CALL"
	TypeDDL     StatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE
	TypeUnknown StatementType = "UNKNOWN" // Unrecognized or blocked statement types
)

// modifyingCTEPattern matches CTEs that contain data-modifying operations.
// Example: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// DetectStatementType determines the type of SQL statement based on the first
// keyword. Returns TypeDDL for DDL statements (CREATE, ALTER, DROP, TRUNCATE)
// which are blocked. Returns TypeUnknown for unrecognized statements or
// data-modifying CTEs.
func DetectStatementType(statement string) StatementType {
	normalized := strings.ToUpper(strings.TrimSpace(statement))

	switch {
	case strings.HasPrefix(normalized, "SELECT"),
		strings.HasPrefix(normalized, "EXPLAIN"),
		strings.HasPrefix(normalized, "SHOW"):
		return TypeSelect

	case strings.HasPrefix(normalized, "WITH"):
		// CTEs starting with WITH could be:
		// 1. Pure SELECT: WITH cte AS (SELECT ...) SELECT * FROM cte
		// 2. Data-modifying CTE: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
		// 3. A write behind a CTE prelude: WITH cte AS (SELECT ...) INSERT INTO ...
		if modifyingCTEPattern.MatchString(statement) {
			return TypeUnknown
		}
		// Re-dispatch on the statement that follows the CTE list so a
		// top-level write is still classified as a write.
		if body := stripCTEPrelude(statement); body != "" {
			return DetectStatementType(body)
		}
		return TypeUnknown

	case strings.HasPrefix(normalized, "INSERT"):
		return TypeInsert

	case strings.HasPrefix(normalized, "UPDATE"):
		return TypeUpdate

	case strings.HasPrefix(normalized, "DELETE"):
		return TypeDelete

	case strings.HasPrefix(normalized, "CALL"):
		return TypeCall

	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return TypeDDL

	// Transaction control is blocked; every statement runs in its own
	// implicit transaction.
	case strings.HasPrefix(normalized, "BEGIN"),
		strings.HasPrefix(normalized, "COMMIT"),
		strings.HasPrefix(normalized, "ROLLBACK"),
		strings.HasPrefix(normalized, "SAVEPOINT"):
		return TypeUnknown

	default:
		return TypeUnknown
	}
}

// stripCTEPrelude returns the top-level statement that follows a WITH
// clause's CTE list, or "" when the prelude is malformed. Parentheses are
// counted with quoted strings and identifiers skipped, so literals
// containing parens do not confuse the scan. A CTE's optional column list
// and AS keyword are stepped over; the first token after a balanced close
// that is neither a comma nor AS starts the top-level statement.
func stripCTEPrelude(statement string) string {
	s := strings.TrimSpace(statement)
	depth := 0

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"':
			quote := c
			for i++; i < len(s); i++ {
				if s[i] != quote {
					continue
				}
				// '' inside a string literal is an escaped quote
				if quote == '\'' && i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				break
			}

		case '(':
			depth++

		case ')':
			depth--
			if depth != 0 {
				continue
			}
			rest := strings.TrimSpace(s[i+1:])
			if rest == "" {
				return ""
			}
			if rest[0] == ',' {
				continue
			}
			if word := leadingWord(rest); strings.EqualFold(word, "AS") {
				// Column list before AS; the CTE body paren is ahead
				continue
			}
			return rest
		}
	}

	return ""
}

// leadingWord returns the first run of letters in s.
func leadingWord(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isLetter {
			return s[:i]
		}
	}
	return s
}

// IsModifyingStatement returns true if the statement type can modify data.
// This includes INSERT, UPDATE, DELETE, and CALL (stored procedures).
func IsModifyingStatement(statementType StatementType) bool {
	switch statementType {
	case TypeInsert, TypeUpdate, TypeDelete, TypeCall:
		return true
	default:
		return false
	}
}

// TypeError represents a statement type validation failure.
type TypeError struct {
	Type    StatementType
	Message string
}

func (e *TypeError) Error() string {
	return e.Message
}

// ValidateStatementType validates a statement before execution.
//
// Rules:
//   - DDL statements (CREATE, ALTER, DROP, TRUNCATE) are never allowed
//   - Unknown statement types and transaction control are not allowed
//   - Modifying statements (INSERT, UPDATE, DELETE, CALL) require allowWrites
//   - SELECT statements are always allowed
func ValidateStatementType(statement string, allowWrites bool) (StatementType, error) {
	statementType := DetectStatementType(statement)

	if statementType == TypeDDL {
		return statementType, &TypeError{
			Type:    statementType,
			Message: "DDL statements (CREATE, ALTER, DROP, TRUNCATE) are not allowed",
		}
	}

	if statementType == TypeUnknown {
		return statementType, &TypeError{
			Type:    statementType,
			Message: "unrecognized SQL statement type; only SELECT, INSERT, UPDATE, DELETE, and CALL are allowed",
		}
	}

	if IsModifyingStatement(statementType) && !allowWrites {
		return statementType, &TypeError{
			Type:    statementType,
			Message: "this SQL statement modifies data; write statements are disabled",
		}
	}

	return statementType, nil
}
