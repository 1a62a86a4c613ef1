package client

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/jmerrifield20/nnas/pkg/accountxml"
)

// Outcome is the three-way result of an existence lookup.
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomeExists
	OutcomeDoesNotExist
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExists:
		return "exists"
	case OutcomeDoesNotExist:
		return "does_not_exist"
	}
	return "error"
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "exists":
		return OutcomeExists, nil
	case "does_not_exist":
		return OutcomeDoesNotExist, nil
	case "error":
		return OutcomeError, nil
	}
	return OutcomeError, fmt.Errorf("unknown outcome %q", s)
}

// LookupResult is the outcome of one existence lookup. Err is a *Error when
// Outcome is OutcomeError and nil otherwise.
type LookupResult struct {
	Username string
	Outcome  Outcome
	Status   int
	Err      error

	// ServiceErrors holds the entries of an error sheet returned by the
	// server, whatever the outcome.
	ServiceErrors []accountxml.ServiceError
}

// clone copies ServiceErrors so cached results are never shared.
func (r LookupResult) clone() LookupResult {
	r.ServiceErrors = slices.Clone(r.ServiceErrors)
	return r
}

// Exists narrows the result to a boolean: true only for confirmed existence.
// A false return covers both "does not exist" and "could not tell".
func (r LookupResult) Exists() bool { return r.Outcome == OutcomeExists }

// Definitive reports whether the server gave a usable answer.
func (r LookupResult) Definitive() bool { return r.Outcome != OutcomeError }

// Rules map server responses to outcomes. The three tables are consulted in
// order: ErrorCodes (when the body is an error sheet), Statuses, then
// Success for any other 2xx status. Responses matching none are errors.
type Rules struct {
	ErrorCodes map[accountxml.Code]Outcome
	Statuses   map[int]Outcome
	Success    Outcome
}

// DefaultRules treat any 2xx status as existence and 404 as absence.
func DefaultRules() Rules {
	return Rules{
		Statuses: map[int]Outcome{http.StatusNotFound: OutcomeDoesNotExist},
		Success:  OutcomeExists,
	}
}

// AccountServerRules match the live account server: a 200 means the id is
// free, and an error sheet carrying code 0100 means it is taken.
func AccountServerRules() Rules {
	return Rules{
		ErrorCodes: map[accountxml.Code]Outcome{accountxml.CodeAccountIDExists: OutcomeExists},
		Statuses:   map[int]Outcome{http.StatusOK: OutcomeDoesNotExist},
	}
}

// Names accepted by RulesByName.
const (
	RulesDefault       = "default"
	RulesAccountServer = "account-server"
)

// RulesByName returns a preset by name.
func RulesByName(name string) (Rules, error) {
	switch name {
	case "", RulesDefault:
		return DefaultRules(), nil
	case RulesAccountServer:
		return AccountServerRules(), nil
	}
	return Rules{}, &Error{Kind: KindConfig, Op: "rules", Err: fmt.Errorf("unknown rule preset %q", name)}
}

func (r Rules) clone() Rules {
	out := Rules{Success: r.Success}
	if r.ErrorCodes != nil {
		out.ErrorCodes = make(map[accountxml.Code]Outcome, len(r.ErrorCodes))
		for k, v := range r.ErrorCodes {
			out.ErrorCodes[k] = v
		}
	}
	if r.Statuses != nil {
		out.Statuses = make(map[int]Outcome, len(r.Statuses))
		for k, v := range r.Statuses {
			out.Statuses[k] = v
		}
	}
	return out
}

// Classifier turns raw exchanges into LookupResults. The zero value treats
// every response as an error.
type Classifier struct {
	rules Rules
}

// NewClassifier returns a Classifier using a private copy of rules.
func NewClassifier(rules Rules) Classifier {
	return Classifier{rules: rules.clone()}
}

// Classify maps one exchange to exactly one outcome. A non-nil transportErr
// always yields an error outcome, whatever status and body say.
func (c Classifier) Classify(status int, body []byte, transportErr error) LookupResult {
	if transportErr != nil {
		return LookupResult{Outcome: OutcomeError, Err: asTransportError(transportErr)}
	}

	res := LookupResult{Status: status}
	var sheet *accountxml.ErrorSheet
	if accountxml.LooksLikeErrorSheet(body) {
		if parsed, err := accountxml.ParseErrorSheet(body); err == nil {
			sheet = parsed
			res.ServiceErrors = parsed.Errors
		}
	}

	if o, ok := c.rules.decide(status, sheet); ok {
		res.Outcome = o
		return res
	}

	unexpected := &Error{Kind: KindUnexpected, Status: status, Op: "classify"}
	if first, ok := sheet.First(); ok {
		unexpected.Err = first
	}
	res.Outcome = OutcomeError
	res.Err = unexpected
	return res
}

// decide applies the rule tables. A table entry mapping to OutcomeError
// stops the search so a status can be forced to count as unexpected.
func (r Rules) decide(status int, sheet *accountxml.ErrorSheet) (Outcome, bool) {
	if sheet != nil {
		for _, e := range sheet.Errors {
			if o, ok := r.ErrorCodes[e.Code]; ok {
				return o, o != OutcomeError
			}
		}
	}
	if o, ok := r.Statuses[status]; ok {
		return o, o != OutcomeError
	}
	if status >= 200 && status < 300 && r.Success != OutcomeError {
		return r.Success, true
	}
	return OutcomeError, false
}

func asTransportError(err error) *Error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindTransport {
		return e
	}
	return transportError(classifyTransport(err), err)
}
