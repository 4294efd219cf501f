package backend

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// submissionResultSchema is the contract a submit-lead success payload
// must satisfy before it is trusted.
const submissionResultSchema = `{
	"type": "object",
	"required": ["leadId", "accountId", "nextStepUrl", "estimatedProcessingTime"],
	"properties": {
		"leadId": {"type": "string", "minLength": 1},
		"accountId": {"type": "string", "minLength": 1},
		"nextStepUrl": {"type": "string", "minLength": 1},
		"estimatedProcessingTime": {"type": "string", "minLength": 1},
		"isFirstTimeUser": {"type": "boolean"}
	}
}`

var submissionSchema = gojsonschema.NewStringLoader(submissionResultSchema)

func validateSubmissionResult(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty submission result")
	}
	result, err := gojsonschema.Validate(submissionSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid submission result: %s", strings.Join(problems, "; "))
	}
	return nil
}
