// Package credentials injects per-provider credentials into tool-call
// arguments. Each provider expects its secrets in a particular shape:
// flattened next to the arguments, wrapped under a reserved key, or the
// whole bundle passed through. The table in this package is the single
// place that knows these shapes.
package credentials

// Reserved argument keys.
const (
	WrappedKey = "__credentials__"
	MirrorKey  = "server_credentials"
)

// Mode selects where injected fields are placed.
type Mode int

const (
	// None injects nothing.
	None Mode = iota
	// Flat sets each field directly on the arguments.
	Flat
	// Wrapped sets the fields as an object under WrappedKey.
	Wrapped
	// Passthrough attaches the whole bundle under WrappedKey and MirrorKey.
	Passthrough
)

// Source selects which object of the bundle fields are read from.
type Source int

const (
	// Root reads from the bundle itself.
	Root Source = iota
	// Nested reads from bundle["credentials"], falling back to the bundle.
	Nested
	// Web reads from bundle["web"], falling back to the bundle. With no
	// fields the selected object is injected whole.
	Web
)

// Field is one injected value. Keys are tried in order; the first
// non-empty value wins, otherwise Default is used.
type Field struct {
	Target  string
	Keys    []string
	Default any
}

// Strategy describes how one provider receives its credentials.
type Strategy struct {
	Mode   Mode
	Source Source
	Fields []Field
}

// field builds a Field whose only source key equals its target and whose
// default is "".
func field(name string) Field {
	return Field{Target: name, Keys: []string{name}, Default: ""}
}

func fields(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = field(n)
	}
	return out
}

// strategies maps provider ids to their credential shape.
var strategies = map[string]Strategy{
	"CONFLUENCE":     {Mode: Wrapped, Source: Nested, Fields: fields("api_token", "user_email", "base_url")},
	"WORDPRESS":      {Mode: Flat, Fields: fields("siteUrl", "username", "password")},
	"ZOOMMCP":        {Mode: Wrapped, Fields: fields("account_id", "client_id", "client_secret")},
	"G_DRIVE":        {Mode: Wrapped, Source: Web},
	"SALESFORCE_MCP": {Mode: Flat, Fields: fields("username", "password", "token")},
	"SLACK":          {Mode: Wrapped, Fields: fields("slack_bot_token", "slack_team_id", "slack_channel_ids")},
	"JIRA":           {Mode: Wrapped, Fields: fields("jira_email", "jira_api_token", "jira_domain", "project_key")},
	"ZENDESK_MCP":    {Mode: Wrapped, Fields: fields("email", "token", "subdomain")},
	"HUBSPOT_MCP":    {Mode: Wrapped, Fields: fields("access_token")},
	"X_MCP":          {Mode: Wrapped, Source: Nested, Fields: fields("app_key", "app_secret", "access_token", "access_token_secret")},
	"NOTION_MCP":     {Mode: Wrapped, Fields: fields("notion_token")},
	"CLICKUP_MCP":    {Mode: Wrapped, Fields: fields("api_token")},
	"DROPBOX": {Mode: Wrapped, Source: Nested, Fields: []Field{
		{Target: "app_key", Keys: []string{"app_key", "appKey"}, Default: ""},
		{Target: "app_secret", Keys: []string{"app_secret", "appSecret"}, Default: ""},
		{Target: "refresh_token", Keys: []string{"refresh_token", "refreshToken"}, Default: ""},
	}},
	"FIGMA_MCP": {Mode: Wrapped, Fields: []Field{
		field("api_token"),
		field("figma_url"),
		{Target: "depth", Keys: []string{"depth"}, Default: 0},
	}},
	"AIRTABLE": {Mode: Wrapped, Fields: fields("api_key")},
	"SHOPIFY":  {Mode: Wrapped, Fields: fields("access_token", "domain")},
	"LINKEDIN": {Mode: Flat, Fields: []Field{
		{Target: "accessToken", Keys: []string{"access_token"}, Default: ""},
	}},
	"INSTAGRAM_MCP": {Mode: Wrapped, Fields: fields("accessToken", "businessAccountId", "appId", "appSecret")},
	"PINTEREST": {Mode: Flat, Fields: []Field{
		{Target: "accessToken", Keys: []string{"accessToken", "access_token"}, Default: ""},
	}},
	"WAYBACK":          {Mode: None},
	"MCP-GSUITE":       {Mode: Passthrough},
	"FACEBOOK_MCP":     {Mode: Passthrough},
	"FACEBOOK_ADS_MCP": {Mode: Passthrough},
}

// Lookup returns the strategy for a provider id.
func Lookup(provider string) (Strategy, bool) {
	s, ok := strategies[provider]
	return s, ok
}

// Resolve returns a copy of args with the provider's credentials
// injected from bundle, the credential object supplied for that
// provider. Neither input is modified. Providers without a strategy get
// an unchanged copy.
func Resolve(provider string, args map[string]any, bundle map[string]any) map[string]any {
	out := make(map[string]any, len(args)+2)
	for k, v := range args {
		out[k] = v
	}

	s, ok := strategies[provider]
	if !ok {
		return out
	}

	switch s.Mode {
	case Flat:
		for k, v := range s.extract(bundle) {
			out[k] = v
		}
	case Wrapped:
		out[WrappedKey] = s.extract(bundle)
	case Passthrough:
		out[WrappedKey] = copyMap(bundle)
		out[MirrorKey] = copyMap(bundle)
	}
	return out
}

// extract reads the strategy's fields from the selected source object.
func (s Strategy) extract(bundle map[string]any) map[string]any {
	src := s.source(bundle)
	if len(s.Fields) == 0 {
		return copyMap(src)
	}
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Target] = f.Default
		for _, k := range f.Keys {
			if v, ok := src[k]; ok && present(v) {
				out[f.Target] = v
				break
			}
		}
	}
	return out
}

func (s Strategy) source(bundle map[string]any) map[string]any {
	var key string
	switch s.Source {
	case Nested:
		key = "credentials"
	case Web:
		key = "web"
	default:
		return bundle
	}
	if nested, ok := bundle[key].(map[string]any); ok {
		return nested
	}
	return bundle
}

// present reports whether v counts as supplied: empty strings, zero
// numbers, false and nil fall back to the next key or the default.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
