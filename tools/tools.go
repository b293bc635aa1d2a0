package tools

import (
	"sort"
	"strings"
	"sync"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/llmutils"
)

// Registry is an ordered set of tools,
// the names are matched case-insensitively and the first registration wins.
type Registry struct {
	lock   sync.RWMutex
	byName map[string]ITool
	list   []ITool
}

// NewRegistry returns a registry with the tools
func NewRegistry(list ...ITool) *Registry {
	r := &Registry{
		byName: make(map[string]ITool),
	}
	return r.Add(list...)
}

// Add registers the tools, duplicates are ignored
func (r *Registry) Add(list ...ITool) *Registry {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, tool := range list {
		if tool == nil {
			continue
		}
		key := strings.ToLower(tool.Name())
		if _, ok := r.byName[key]; ok {
			continue
		}
		r.byName[key] = tool
		r.list = append(r.list, tool)
	}
	return r
}

// Get returns the tool by name
func (r *Registry) Get(name string) (ITool, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// List returns the tools in registration order
func (r *Registry) List() []ITool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]ITool(nil), r.list...)
}

// Len returns the number of tools
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.list)
}

// Names returns the tool names in registration order
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	names := make([]string, 0, len(r.list))
	for _, t := range r.list {
		names = append(names, t.Name())
	}
	return names
}

// SortedNames returns the tool names in alphabetical order
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

// Definitions returns the function definitions to send to the model
func (r *Registry) Definitions() []llms.Tool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	defs := make([]llms.Tool, 0, len(r.list))
	for _, t := range r.list {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns the JSON description of the tools, to be used in a prompt
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
