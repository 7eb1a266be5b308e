package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docpipe/docpipe/internal/models"
)

// buildAnalysisPrompt produces the plan interpretation prompt. The response
// schema here is the contract models.ExecutionPlan is decoded from; keep
// the two in sync.
func buildAnalysisPrompt(promptConfig, template json.RawMessage) string {
	var b strings.Builder
	b.WriteString(`You are a conversation flow analyzer for a legal document generation platform.

Given a prompt configuration JSON (which may have ANY structure), analyze it and create a standardized execution plan.

## Prompt Configuration
`)
	writeJSONBlock(&b, promptConfig)
	b.WriteString(`
## Document Template
`)
	writeJSONBlock(&b, template)
	b.WriteString(`
## Your Task
Analyze the prompt configuration and extract:

1. Structure Analysis: understand how questions are organized (phases/sections, flat list, hierarchical, custom).
2. Question Sequence: extract ALL questions in the order they should be asked, converting complex question types into simple web form types.
3. Conditional Logic: identify any conditional/follow-up questions and their triggers.
4. Validation Rules: extract validation requirements.
5. Field Mappings: map question IDs to template placeholder fields.

Respond with JSON in this EXACT format (this is critical):
{
  "structure_analysis": {
    "type": "describe the structure type",
    "total_questions": <number>,
    "has_conditional_logic": true/false,
    "description": "Brief description of the document flow"
  },
  "question_sequence": [
    {
      "sequence_number": 1,
      "question_id": "unique_id",
      "question_text": "What is...",
      "input_type": "text|select|date|number|email|tel",
      "options": ["option1", "option2"] or null,
      "required": true/false,
      "help_text": "helpful guidance" or null,
      "placeholder": "example value" or null,
      "validation_rules": ["rule1", "rule2"] or [],
      "maps_to_field": "TEMPLATE_FIELD_NAME" or null,
      "depends_on": null
    }
  ],
  "conditional_questions": [
    {
      "question_id": "conditional_question_id",
      "triggered_by_field": "parent_field_id",
      "trigger_condition": {"field": "value"},
      "question_text": "What is...",
      "input_type": "text|select|date|number",
      "required": true/false,
      "maps_to_field": "TEMPLATE_FIELD_NAME"
    }
  ],
  "validation_rules": {
    "field_validations": {
      "field_id": ["min_length: 5", "max_length: 100"]
    },
    "cross_field_validations": [
      {
        "rule": "end_date must be after start_date",
        "fields": ["start_date", "end_date"],
        "error_message": "End date must be after start date"
      }
    ]
  },
  "welcome_message": "A friendly welcome message to start the conversation"
}

IMPORTANT RULES:
- Convert ALL question types to simple web form types (text, select, date, number, email, tel).
- If a question type is "address", break it into multiple text fields (street, city, postal_code, etc.).
- If a question type is "object", break it into multiple questions for each property.
- Include ALL questions, both required and optional.
- Number questions sequentially starting from 1.
- Every question_id must be unique, and trigger/dependency references must point at real question ids.
- For conditional questions, clearly specify the trigger condition.
- Make the welcome_message friendly and encouraging.

Respond with ONLY the JSON, no additional text.`)
	return b.String()
}

// buildFillPrompt produces the template filling prompt.
func buildFillPrompt(template json.RawMessage, collected map[string]any) string {
	var b strings.Builder
	b.WriteString(`You are filling out a legal document template with collected data.

## Template Structure
`)
	writeJSONBlock(&b, template)
	b.WriteString(`
## Collected Data
`)
	writeJSONValue(&b, collected)
	b.WriteString(`
## Your Task
Fill the template by:
1. Replacing all [PLACEHOLDER] markers with corresponding values from the collected data.
2. Handling optional sections: include them if data exists, exclude them if not.
3. Formatting dates, numbers, and text appropriately.
4. Ensuring legal language is preserved.
5. Returning the filled template as valid JSON.

Respond with ONLY the filled JSON template, no other text.`)
	return b.String()
}

// buildSuggestionPrompt produces the smart-suggestion prompt.
func buildSuggestionPrompt(question models.QuestionView, collected map[string]any) (string, error) {
	questionJSON, err := json.Marshal(question)
	if err != nil {
		return "", fmt.Errorf("failed to encode question: %w", err)
	}
	var b strings.Builder
	b.WriteString(`Based on previously collected data, provide a smart suggestion for the current question.

## Collected Data So Far
`)
	writeJSONValue(&b, collected)
	b.WriteString(`
## Current Question
`)
	writeJSONBlock(&b, questionJSON)
	b.WriteString(`
## Your Task
Provide a helpful suggestion based on previously collected data, legal best practices, and common patterns.

Respond with JSON:
{"suggestion": "suggested value or example", "reasoning": "why this is suggested (1-2 sentences)", "confidence": 0.8}

If no good suggestion, return:
{"suggestion": null, "reasoning": "not enough context", "confidence": 0.0}

Respond with ONLY the JSON.`)
	return b.String(), nil
}

// buildReviewPrompt produces the secondary validation prompt. The bounded
// scope rule is restated to the model: only fields in the current questions
// may be flagged.
func buildReviewPrompt(rules models.ValidationRuleSet, answers, collected map[string]any, inScope []models.QuestionView) (string, error) {
	scopeJSON, err := json.Marshal(inScope)
	if err != nil {
		return "", fmt.Errorf("failed to encode questions in scope: %w", err)
	}
	var b strings.Builder
	b.WriteString(`You are a data validator for a legal document generation system.

## Validation Rules
`)
	writeJSONValue(&b, rules)
	b.WriteString(`
## Current Questions Being Answered
`)
	writeJSONBlock(&b, scopeJSON)
	b.WriteString(`
## New Answers
`)
	writeJSONValue(&b, answers)
	b.WriteString(`
## All Collected Data (for cross-field validation)
`)
	writeJSONValue(&b, collected)
	b.WriteString(`
## Your Task
Validate ONLY the answers for fields listed in "Current Questions Being Answered".

CRITICAL: Do NOT validate fields that are not in the "Current Questions Being Answered" section. Only validate the specific fields that were asked in this step.

For each field in scope, check:
1. If the field is required, verify the answer is provided and not empty.
2. Data types are correct.
3. For select fields, the answer matches one of the valid options exactly.
4. Values meet constraints (length, format, range, etc.).
5. Cross-field validations pass ONLY if all involved fields are in the current questions (e.g., end date after start date).

Respond with JSON:
{
  "is_valid": true/false,
  "errors": [{"field": "field_id", "message": "Clear error message for the user", "severity": "error"}],
  "warnings": [{"field": "field_id", "message": "Warning message (non-blocking)", "severity": "warning"}]
}

Respond with ONLY the JSON.`)
	return b.String(), nil
}

func writeJSONBlock(b *strings.Builder, raw json.RawMessage) {
	b.WriteString("```json\n")
	b.Write(raw)
	b.WriteString("\n```\n")
}

func writeJSONValue(b *strings.Builder, value any) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		encoded = []byte("{}")
	}
	writeJSONBlock(b, encoded)
}
