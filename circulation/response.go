package circulation

import (
	"errors"
	"maps"
	"slices"
)

// Outcome is what a successful operation reports: its code, the message arguments, and any warnings.
type Outcome struct {
	Code     Code
	Args     []any
	Warnings []Code
}

// Response is the user-visible result of an operation.
// A batch either succeeds as a whole or comes back with Items listing every rejected member.
type Response struct {
	Success  bool                `json:"success"`
	Code     Code                `json:"code"`
	Message  string              `json:"message"`
	Fields   map[string][]string `json:"fields,omitempty"`
	Items    map[string][]string `json:"items,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Respond renders outcome or err in locale.
// Errors that are not business outcomes are rendered as a generic internal error without leaking details.
func Respond(messages Messages, locale Locale, outcome Outcome, err error) Response {
	if err == nil {
		response := Response{
			Success: true,
			Code:    outcome.Code,
			Message: messages.Lookup(locale, outcome.Code, outcome.Args...),
		}

		for _, warning := range outcome.Warnings {
			response.Warnings = append(response.Warnings, messages.Lookup(locale, warning))
		}

		return response
	}

	var batch *BatchFailure
	if errors.As(err, &batch) {
		response := Response{
			Code:    batch.Code,
			Message: messages.Lookup(locale, batch.Code),
			Items:   make(map[string][]string, len(batch.Items)),
		}

		for id, itemErrs := range batch.Items {
			for _, itemErr := range itemErrs {
				response.Items[id.String()] = append(
					response.Items[id.String()],
					Respond(messages, locale, Outcome{}, itemErr).Message,
				)
			}
		}

		return response
	}

	var failure *Failure
	if errors.As(err, &failure) && failure.IsBusinessOutcome() {
		response := Response{
			Code:    failure.Code,
			Message: messages.Lookup(locale, failure.Code, failure.Args...),
		}

		if len(failure.Fields) > 0 {
			response.Fields = make(map[string][]string, len(failure.Fields))
			for _, field := range slices.Sorted(maps.Keys(failure.Fields)) {
				for _, code := range failure.Fields[field] {
					response.Fields[field] = append(response.Fields[field], messages.Lookup(locale, code))
				}
			}
		}

		return response
	}

	if errors.Is(err, ErrConcurrencyConflict) {
		return Response{Code: CodeConcurrencyConflict, Message: messages.Lookup(locale, CodeConcurrencyConflict)}
	}

	return Response{Code: CodeInternalError, Message: messages.Lookup(locale, CodeInternalError)}
}
