// Package tools defines the Tool contract for LLM agents.
//
// A tool takes a JSON object matching its reflected parameters schema and returns
// a JSON object embedding Result. Precondition failures are reported with the
// `error`, `not_found` or `empty` status. A Go error is reserved for
// infrastructure failures, such as undecodable input or an unreachable store.
package tools
