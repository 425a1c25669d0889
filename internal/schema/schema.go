// Package schema holds the JSON Schema documents that constrain model output
// and request bodies, and validates payloads against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Definition is a named JSON Schema. The name and description are forwarded to
// the model provider; the compiled schema validates whatever comes back.
type Definition struct {
	Name        string
	Description string
	Document    json.RawMessage

	compiled *gojsonschema.Schema
}

// ValidationError lists every violation found in a payload.
type ValidationError struct {
	Schema string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: %s payload invalid: %s", e.Schema, strings.Join(e.Errors, "; "))
}

func mustDefine(name, description, document string) Definition {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		panic(fmt.Sprintf("schema: compile %s: %v", name, err))
	}
	return Definition{
		Name:        name,
		Description: description,
		Document:    json.RawMessage(document),
		compiled:    compiled,
	}
}

// Validate checks raw JSON against the definition.
func (d Definition) Validate(raw []byte) error {
	if d.compiled == nil {
		return errors.New("schema: definition not compiled")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &ValidationError{Schema: d.Name, Errors: []string{"payload is empty"}}
	}
	result, err := d.compiled.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationError{Schema: d.Name, Errors: []string{fmt.Sprintf("payload is not valid JSON: %v", err)}}
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return &ValidationError{Schema: d.Name, Errors: msgs}
}

// ForPhase returns Issues once an option has been selected and Project before.
func ForPhase(optionSelected bool) Definition {
	if optionSelected {
		return Issues
	}
	return Project
}

// Project constrains the option-proposal phase.
var Project = mustDefine("Project", "A project framing the user's goal and the options to reach it.", `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"projectName": {"type": "string", "description": "The name of the project"},
		"projectDescription": {"type": "string", "description": "The description of the project. Be specific."},
		"options": {
			"type": "array",
			"description": "The options to choose from",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"properties": {
					"title": {"type": "string", "description": "The title of the action item"},
					"description": {"type": "string", "description": "The description of the action item."},
					"percentageOfSuccess": {"type": "integer", "description": "The percentage of success"},
					"pros": {"type": "array", "items": {"type": "string"}, "description": "The pros of the action item"},
					"cons": {"type": "array", "items": {"type": "string"}, "description": "The cons of the action item"}
				},
				"required": ["title", "description", "percentageOfSuccess", "pros", "cons"]
			}
		}
	},
	"required": ["projectName", "projectDescription", "options"]
}`)

// Issues constrains the action-item breakdown phase.
var Issues = mustDefine("Issues", "The project and the action items for the selected option.", `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"projectName": {"type": "string", "description": "The name of the project"},
		"projectDescription": {"type": "string", "description": "The description of the project. Be specific."},
		"actionItems": {
			"type": "array",
			"description": "The action items of the selected option",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"properties": {
					"task": {"type": "string", "description": "The task of the issue"},
					"description": {"type": "string", "description": "The description of the issue."},
					"priority": {"type": "string", "description": "The priority of the issue"},
					"deadline": {"type": "string", "description": "The deadline of the issue"},
					"potentialBlockers": {"type": "array", "items": {"type": "string"}, "description": "The potential blockers of the issue"}
				},
				"required": ["task", "description", "priority", "deadline", "potentialBlockers"]
			}
		}
	},
	"required": ["projectName", "projectDescription", "actionItems"]
}`)

// AskRequest is the body accepted by POST /ask.
var AskRequest = mustDefine("AskRequest", "", `{
	"type": "object",
	"properties": {
		"now": {"type": "string", "minLength": 1},
		"then": {"type": "string", "minLength": 1}
	},
	"required": ["now", "then"]
}`)

// SelectOptionRequest is the body accepted by POST /select-option. A missing
// chatId is not a schema error; it surfaces as missing history.
var SelectOptionRequest = mustDefine("SelectOptionRequest", "", `{
	"type": "object",
	"properties": {
		"selectedOption": {"type": "string", "minLength": 1},
		"chatId": {"type": "string"}
	},
	"required": ["selectedOption"]
}`)
