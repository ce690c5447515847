// Package logging provides utilities for secure logging with data masking.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Redacted replaces masked values.
const Redacted = "[REDACTED]"

// SensitiveFields are the JSON fields masked in logged request and response bodies.
var SensitiveFields = []string{"password", "hashedPassword", "accessToken"}

// MaskHeader redacts sensitive header values based on header name.
// Returns the redacted value suitable for logging.
//
// Rules:
// - Password/secret headers: "[REDACTED]" (no partial reveal)
// - Token headers: "****" + last4chars (e.g., "****ab3f")
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	// Password/secret headers - full redaction
	if strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "private-key") {
		return Redacted
	}

	// Token headers - show last 4 chars
	if lowerName == "x-authorization" ||
		lowerName == "authorization" ||
		lowerName == "x-api-key" {
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// MaskJSONBody redacts the denylisted fields of a JSON body at any depth.
//
// If denylist is empty, returns the body unchanged.
// Denylisted fields keep their key; the value becomes "[REDACTED]"
// whatever its type.
//
// Returns the masked JSON as bytes, or body unchanged if parsing fails.
func MaskJSONBody(body []byte, denylist []string) []byte {
	if len(denylist) == 0 || len(body) == 0 {
		return body
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	deny := make(map[string]bool, len(denylist))
	for _, field := range denylist {
		deny[field] = true
	}

	result, err := json.Marshal(maskJSONValue(data, deny))
	if err != nil {
		return body
	}
	return result
}

// maskJSONValue recursively masks JSON values based on denylist
func maskJSONValue(value any, deny map[string]bool) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			if deny[key] {
				result[key] = Redacted
				continue
			}
			result[key] = maskJSONValue(val, deny)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = maskJSONValue(item, deny)
		}
		return result
	default:
		return value
	}
}

// FormatBinaryData formats binary data for logging.
// Returns a human-readable size indicator.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
