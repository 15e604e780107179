package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a parameter value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Bare name of the parameter that failed the check
	ParamValue  any
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a parameter value. Bound values cannot change the statement, so a hit is
// only worth a warning: it usually means a caller is building SQL elsewhere
// from the same input.
//
// Only string values are checked; every other type returns nil.
//
// Example:
//
//	result := CheckParameterForInjection(":search", "'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.ParamName == "search"
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   BareName(paramName),
			ParamValue:  value,
		}
	}

	return nil
}

// CheckAllParameters runs CheckParameterForInjection over params in sorted key
// order and returns every hit.
func CheckAllParameters(params Params) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, name := range params.SortedKeys() {
		if result := CheckParameterForInjection(name, params[name]); result != nil {
			results = append(results, result)
		}
	}
	return results
}
