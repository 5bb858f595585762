package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rhuss/mcpgate/pkg/api"
)

func TestParseGate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want GateDecision
	}{
		{"true with tools", "<function_call>TRUE</function_call>\n<selected_tools>search_github, list_issues</selected_tools>",
			GateDecision{IsFunctionCall: true, SelectedTools: []string{"search_github", "list_issues"}}},
		{"false", "<function_call>FALSE</function_call><selected_tools>none</selected_tools>",
			GateDecision{SelectedTools: []string{"none"}}},
		{"lowercase true", "<function_call> true </function_call>", GateDecision{IsFunctionCall: true}},
		{"no tags", "I can answer that directly.", GateDecision{}},
		{"unclosed tag", "<function_call>TRUE", GateDecision{}},
		{"garbage value", "<function_call>maybe</function_call>", GateDecision{}},
		{"multiline list", "<function_call>TRUE</function_call><selected_tools>\na,\n\nb\n</selected_tools>",
			GateDecision{IsFunctionCall: true, SelectedTools: []string{"a", "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseGate(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseGate(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func decl(name string) api.ToolDeclaration {
	return api.ToolDeclaration{Type: "function", Function: api.FunctionSchema{Name: name, Description: "does " + name}}
}

func TestSelectTools(t *testing.T) {
	all := []api.ToolDeclaration{decl("a"), decl("b"), decl("c")}

	got := selectTools(all, []string{"c", "none", "a", "c"})
	if len(got) != 2 || got[0].Name() != "c" || got[1].Name() != "a" {
		t.Errorf("selectTools = %+v", got)
	}
	if got := selectTools(all, nil); len(got) != 0 {
		t.Errorf("empty selection = %+v", got)
	}
}

func TestGatePrompt(t *testing.T) {
	p := gatePrompt([]string{"GITHUB", "SLACK"}, []api.ToolDeclaration{decl("search_github")})

	if !strings.Contains(p, "You are an GITHUB, SLACK AI assistant") {
		t.Errorf("prompt does not name the servers: %s", p)
	}
	if !strings.Contains(p, `{"function_name":"search_github","function_description":"does search_github"}`) {
		t.Errorf("prompt does not list the tool summary: %s", p)
	}
	if !strings.Contains(p, "<selected_tools>") {
		t.Error("prompt does not describe the output format")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	if c.maxRounds() != 10 || c.temperature() != 0.1 || c.maxTokens() != 1000 {
		t.Errorf("defaults = %d %v %d", c.maxRounds(), c.temperature(), c.maxTokens())
	}
	c = Config{MaxRounds: 2, DefaultTemperature: 0.7, DefaultMaxTokens: 50}
	if c.maxRounds() != 2 || c.temperature() != 0.7 || c.maxTokens() != 50 {
		t.Errorf("overrides = %d %v %d", c.maxRounds(), c.temperature(), c.maxTokens())
	}
}
