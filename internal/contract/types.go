package contract

// SchemaVersion is stamped into _metadata of every written artifact
const SchemaVersion = "1.0"

// MetadataKey is the reserved top-level key that is not a path
const MetadataKey = "_metadata"

// Entry describes one (path, method) pair
type Entry struct {
	Description        string                 `json:"description,omitempty"`
	Deprecated         bool                   `json:"deprecated,omitempty"`
	Auth               Auth                   `json:"auth"`
	PathParameters     []PathParameter        `json:"path_parameters"`
	QueryParameters    map[string]FieldSchema `json:"query_parameters,omitempty"`
	RequestSchema      map[string]FieldSchema `json:"request_schema"`
	ResponseSchema     *Schema                `json:"response_schema"`
	CustomHeaders      []Header               `json:"custom_headers"`
	RateLimit          *RateLimit             `json:"rate_limit"`
	APIVersion         *string                `json:"api_version"`
	Middleware         []Middleware           `json:"middleware,omitempty"`
	RouteName          string                 `json:"route_name,omitempty"`
	StatusCodes        map[string]string      `json:"status_codes,omitempty"`
	ContentNegotiation *ContentNegotiation    `json:"content_negotiation,omitempty"`
	Error              *EntryError            `json:"error,omitempty"`
}

// MarshalJSON keeps the always-present members present even when empty
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	p := plain(e)
	if p.PathParameters == nil {
		p.PathParameters = []PathParameter{}
	}
	if p.RequestSchema == nil {
		p.RequestSchema = map[string]FieldSchema{}
	}
	if p.CustomHeaders == nil {
		p.CustomHeaders = []Header{}
	}
	if p.Auth.Type == "" {
		p.Auth.Type = AuthNone
	}
	if p.ResponseSchema == nil {
		p.ResponseSchema = Undocumented()
	}
	return marshalUnescaped(p)
}

// Auth types
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthOAuth2 = "oauth2"
	AuthAPIKey = "apiKey"
	AuthBasic  = "basic"
)

// Auth is the authentication requirement of a route
type Auth struct {
	Type     string `json:"type"`
	Scheme   string `json:"scheme,omitempty"`
	Provider string `json:"provider,omitempty"`
	In       string `json:"in,omitempty"`
	Name     string `json:"name,omitempty"`
}

// PathParameter is one {placeholder} of the URI template
type PathParameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// FieldSchema describes one request or query field
type FieldSchema struct {
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Constraints []string `json:"constraints"`
}

// MarshalJSON always emits constraints as a list
func (f FieldSchema) MarshalJSON() ([]byte, error) {
	type plain FieldSchema
	p := plain(f)
	if p.Constraints == nil {
		p.Constraints = []string{}
	}
	return marshalUnescaped(p)
}

// Schema is the structural description of a response body
type Schema struct {
	Type         string             `json:"type,omitempty"`
	Format       string             `json:"format,omitempty"`
	Properties   map[string]*Schema `json:"properties,omitempty"`
	Items        *Schema            `json:"items,omitempty"`
	Undocumented bool               `json:"undocumented,omitempty"`
	Error        string             `json:"error,omitempty"`
	Example      any                `json:"example,omitempty"`
}

// Undocumented returns the "nothing could be recovered" sentinel
func Undocumented() *Schema {
	return &Schema{Undocumented: true}
}

// IsUndocumented reports whether s carries no structural information
func (s *Schema) IsUndocumented() bool {
	return s == nil || s.Undocumented
}

// Header is a request header the route expects
type Header struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// RateLimit is either an explicit throttle (MaxAttempts/DecayMinutes) or a
// named limiter (Name)
type RateLimit struct {
	Name         string `json:"name,omitempty"`
	MaxAttempts  int    `json:"max_attempts,omitempty"`
	DecayMinutes int    `json:"decay_minutes,omitempty"`
	Description  string `json:"description"`
}

// Middleware is one classified middleware entry
type Middleware struct {
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Parameters *MiddlewareParams `json:"parameters,omitempty"`
}

// MiddlewareParams holds the arguments after "name:"
type MiddlewareParams struct {
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// ContentNegotiation lists accepted request and produced response media types
type ContentNegotiation struct {
	Request  []string `json:"request"`
	Response []string `json:"response"`
}

// EntryError records why an entry is degraded
type EntryError struct {
	Kind       string `json:"kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Metadata is stored under MetadataKey
type Metadata struct {
	GeneratedAt   string `json:"generated_at"`
	GitRevision   string `json:"git_revision,omitempty"`
	SchemaVersion string `json:"schema_version"`
	Generator     string `json:"generator,omitempty"`
	RouteCount    int    `json:"route_count"`
}
