// Package assistants provides the tool calling loop of the shopping agent.
//
// An Assistant renders the system prompt, sends the conversation with the
// tool definitions to the LLM, executes the requested tools in parallel,
// and parses the final response with the output parser of the configured mode.
package assistants
