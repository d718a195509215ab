// Package phi implements the HIPAA-driven response redaction applied to
// impersonation sessions, plus the PHI access audit trail. When an admin acts
// as another user their session must not expose direct patient identifiers,
// so responses are rewritten before they leave the API.
package phi

// RedactedPlaceholder replaces string identifier values.
const RedactedPlaceholder = "[REDACTED]"

// RedactedDate replaces date-of-birth values so portal date pickers still
// parse the field.
const RedactedDate = "1900-01-01"

// maskedKeys is the fixed set of JSON key names whose values are replaced for
// impersonation sessions. These cover the HIPAA Safe Harbor direct-identifier
// categories that appear in API responses: names, geographic detail below
// state level, contact details, birth dates, SSN and account identifiers.
var maskedKeys = map[string]bool{
	"email":           true,
	"phone":           true,
	"phone_number":    true,
	"dob":             true,
	"date_of_birth":   true,
	"first_name":      true,
	"last_name":       true,
	"address":         true,
	"address_line1":   true,
	"address_line2":   true,
	"street":          true,
	"city":            true,
	"zip":             true,
	"zip_code":        true,
	"postal_code":     true,
	"ssn":             true,
	"insurance_id":    true,
	"shipping_address": true,
	"billing_address": true,
}

// dateKeys are masked keys whose values are ISO dates rather than free text.
var dateKeys = map[string]bool{
	"dob":           true,
	"date_of_birth": true,
}

// IsMaskedKey reports whether a JSON key is in the redaction set.
func IsMaskedKey(key string) bool {
	return maskedKeys[key]
}

// MaskedKeys returns a copy of the redaction key set, for diagnostics.
func MaskedKeys() []string {
	keys := make([]string, 0, len(maskedKeys))
	for k := range maskedKeys {
		keys = append(keys, k)
	}
	return keys
}
