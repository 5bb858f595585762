package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rhuss/mcpgate/pkg/api"
)

// GateDecision is the parsed reply of the gate round.
type GateDecision struct {
	IsFunctionCall bool
	SelectedTools  []string
}

var (
	functionCallTag  = regexp.MustCompile(`(?s)<function_call>(.*?)</function_call>`)
	selectedToolsTag = regexp.MustCompile(`(?s)<selected_tools>(.*?)</selected_tools>`)
)

// ParseGate reads the two gate tags from a backend reply. Missing or
// malformed tags yield "no tools".
func ParseGate(text string) GateDecision {
	var d GateDecision
	if m := functionCallTag.FindStringSubmatch(text); m != nil {
		d.IsFunctionCall = strings.EqualFold(strings.TrimSpace(m[1]), "TRUE")
	}
	if m := selectedToolsTag.FindStringSubmatch(text); m != nil {
		for _, name := range strings.Split(m[1], ",") {
			if name = strings.TrimSpace(name); name != "" {
				d.SelectedTools = append(d.SelectedTools, name)
			}
		}
	}
	return d
}

type toolSummary struct {
	FunctionName        string `json:"function_name"`
	FunctionDescription string `json:"function_description"`
}

// gatePrompt builds the decision prompt. It names each tool and its
// description but never its parameter schema.
func gatePrompt(servers []string, tools []api.ToolDeclaration) string {
	summaries := make([]toolSummary, len(tools))
	for i, t := range tools {
		summaries[i] = toolSummary{FunctionName: t.Function.Name, FunctionDescription: t.Function.Description}
	}
	list, _ := json.Marshal(summaries)

	return fmt.Sprintf(`You are an %s AI assistant that analyzes user requests and determines the require tool calls from available tools.
Available tools: %s
Analyze each request to determine if it matches available tool capabilities or needs clarification.
Return TRUE for tool calls when the request clearly maps to available tools without checking the required parameters.
Return FALSE when the request is ambiguous, missing parameters, or requires more information.
Output format:
    <function_call>TRUE/FALSE</function_call>
    <selected_tools>function_name1,function_name2 or "none"</selected_tools>
Use exact tool names from available tools. List all relevant tools ordered by relevance.`,
		strings.Join(servers, ", "), list)
}

// selectTools returns the declarations named in selected, in selection
// order. Unknown names are dropped; a name listed twice is kept once.
func selectTools(all []api.ToolDeclaration, selected []string) []api.ToolDeclaration {
	byName := make(map[string]api.ToolDeclaration, len(all))
	for _, t := range all {
		if _, dup := byName[t.Name()]; !dup {
			byName[t.Name()] = t
		}
	}
	out := make([]api.ToolDeclaration, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, name := range selected {
		if t, ok := byName[name]; ok && !seen[name] {
			out = append(out, t)
			seen[name] = true
		}
	}
	return out
}
