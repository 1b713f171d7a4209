package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// user-supplied value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the value that failed the check
	ParamValue  any    // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a user-supplied value.
//
// Only string values are checked - numbers, booleans, and other types cannot
// carry injection payloads and return nil.
//
// Returns nil if no injection is detected, or an InjectionCheckResult with
// details about the detected pattern.
func CheckValueForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}
