package records

import (
	"fmt"
	"sort"
	"strings"
)

// Collection names
const (
	Participants = "participants"
	Events       = "events"
	Schedules    = "schedules"
	Matches      = "matches"
)

// Match statuses
const (
	MatchScheduled  = "scheduled"
	MatchInProgress = "in_progress"
	MatchCompleted  = "completed"
)

// Match result methods
const (
	MethodKO       = "ko"
	MethodDecision = "decision"
	MethodDraw     = "draw"
)

// FieldType is the JSON type a field must hold
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
)

// Field describes one field of a collection
type Field struct {
	Type     FieldType
	Required bool
	Enum     []string // Allowed values for string fields, empty means any
}

// Schema lists the typed fields of a collection. Unlisted fields are allowed.
type Schema map[string]Field

// Schemas for every known collection
var Schemas = map[string]Schema{
	Participants: {
		"name":         {Type: TypeString, Required: true},
		"team":         {Type: TypeString},
		"weight_class": {Type: TypeString},
		"active":       {Type: TypeBool},
	},
	Events: {
		"name":      {Type: TypeString, Required: true},
		"venue":     {Type: TypeString},
		"starts_at": {Type: TypeString},
	},
	Schedules: {
		"event_id": {Type: TypeString, Required: true},
		"match_id": {Type: TypeString, Required: true},
		"order":    {Type: TypeNumber, Required: true},
	},
	Matches: {
		"red_id":    {Type: TypeString, Required: true},
		"blue_id":   {Type: TypeString, Required: true},
		"status":    {Type: TypeString, Required: true, Enum: []string{MatchScheduled, MatchInProgress, MatchCompleted}},
		"event_id":  {Type: TypeString},
		"winner_id": {Type: TypeString},
		"method":    {Type: TypeString, Enum: []string{MethodKO, MethodDecision, MethodDraw}},
		"round":     {Type: TypeNumber},
	},
}

// SchemaFor returns the schema of a collection
func SchemaFor(collection string) (Schema, error) {
	s, ok := Schemas[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return s, nil
}

// Validate checks data against the schema, reporting every problem at once
func (s Schema) Validate(data map[string]interface{}) error {
	var problems []string

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := s[name]
		v, ok := data[name]
		if !ok || v == nil {
			if field.Required {
				problems = append(problems, name+" is required")
			}
			continue
		}
		if !hasType(v, field.Type) {
			problems = append(problems, fmt.Sprintf("%s must be a %s", name, field.Type))
			continue
		}
		if len(field.Enum) > 0 && !contains(field.Enum, v.(string)) {
			problems = append(problems, fmt.Sprintf("%s must be one of %s", name, strings.Join(field.Enum, ", ")))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(problems, "; "))
	}
	return nil
}

func validate(collection string, data map[string]interface{}) error {
	s, err := SchemaFor(collection)
	if err != nil {
		return err
	}
	return s.Validate(data)
}

func hasType(v interface{}, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
