package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// SchemaVersion is the version written by this build.
const SchemaVersion = 1

var ErrUnsupportedSchema = errors.New("unsupported schema version")

type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{SchemaVersion: SchemaVersion, Data: data})
}

// decode unwraps an envelope into v, migrating older documents first.
// Documents without an envelope are schema 0: the bare camelCase JSON the
// browser widget used to keep in local storage.
func decode(raw []byte, v interface{}) error {
	var fields map[string]json.RawMessage
	isObject := json.Unmarshal(raw, &fields) == nil

	version := 0
	payload := json.RawMessage(raw)
	if isObject {
		if rawVersion, ok := fields["schema_version"]; ok {
			if err := json.Unmarshal(rawVersion, &version); err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			payload = fields["data"]
		}
	}

	switch {
	case version > SchemaVersion:
		return fmt.Errorf("%w: %d (newest known %d)", ErrUnsupportedSchema, version, SchemaVersion)
	case version == 0:
		migrated, err := migrateV0(payload)
		if err != nil {
			return fmt.Errorf("migrate schema 0: %w", err)
		}
		payload = migrated
	}

	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrUnsupportedSchema)
	}
	return json.Unmarshal(payload, v)
}

// migrateV0 rewrites every object key from camelCase to snake_case.
func migrateV0(raw []byte) ([]byte, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(snakeKeys(doc))
}

func snakeKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[toSnake(k)] = snakeKeys(val)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = snakeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// legacyKeys maps widget field names that do not convert mechanically.
var legacyKeys = map[string]string{
	"sessionId":         "session_id",
	"aiProvider":        "provider",
	"preferredProvider": "provider",
	"timeout":           "timeout_ms",
	"apiKeys":           "api_keys",
	"showCode":          "show_code_examples",
	"tutorials":         "tutorials_enabled",
	"experience":        "experience_level",
	"userRole":          "role",
	"messageType":       "mode",
}

func toSnake(s string) string {
	if mapped, ok := legacyKeys[s]; ok {
		return mapped
	}
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
