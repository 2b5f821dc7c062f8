package rego

import (
	"github.com/open-ir/policyc/ir"
	"github.com/open-ir/policyc/ir/encoding"
)

// SaveBundle serializes bundle using the binary form,
// the host API's `Bundle.Save`.
func SaveBundle(bundle *ir.Bundle) ([]byte, error) {
	return encoding.MarshalBinary(bundle)
}

// LoadBundle parses a binary-form bundle, the host
// API's `Bundle.Load`.
func LoadBundle(data []byte) (*ir.Bundle, error) {
	return encoding.UnmarshalBinary(data)
}

// SaveBundleJSON serializes bundle using the human-readable JSON form.
func SaveBundleJSON(bundle *ir.Bundle) ([]byte, error) {
	return encoding.MarshalJSON(bundle)
}

// LoadBundleJSON parses a JSON-form bundle.
func LoadBundleJSON(data []byte) (*ir.Bundle, error) {
	return encoding.UnmarshalJSON(data)
}
