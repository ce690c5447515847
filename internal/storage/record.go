package storage

// System fields maintained by the store. Clients can never set them directly.
const (
	FieldID        = "_id"
	FieldOwnerID   = "_ownerId"
	FieldCreatedOn = "_createdOn"
	FieldUpdatedOn = "_updatedOn"
	FieldDeletedOn = "_deletedOn"
)

var systemFields = [...]string{FieldID, FieldCreatedOn, FieldUpdatedOn, FieldOwnerID}

// IsSystemField reports whether name is one of the store-maintained fields.
func IsSystemField(name string) bool {
	for _, f := range systemFields {
		if f == name {
			return true
		}
	}
	return false
}

// Record is a single JSON document. Values are the types produced by
// encoding/json when decoding into any, plus int64 timestamps.
type Record map[string]any

// ID returns the record's _id, or "" if absent.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// OwnerID returns the record's _ownerId, or "" if absent.
func (r Record) OwnerID() string {
	id, _ := r[FieldOwnerID].(string)
	return id
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = DeepCopy(v)
	}
	return out
}

// AsRecord converts a decoded JSON value into a Record when it is an object.
func AsRecord(v any) (Record, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]any:
		return Record(t), true
	default:
		return nil, false
	}
}

// DeepCopy copies maps and slices recursively. Scalars are returned as is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, val := range t {
			out[i] = val.Clone()
		}
		return out
	default:
		return v
	}
}

// cleanCopy deep-copies data into target, skipping system fields.
func cleanCopy(target, data Record) Record {
	for k, v := range data {
		if IsSystemField(k) {
			continue
		}
		target[k] = DeepCopy(v)
	}
	return target
}
