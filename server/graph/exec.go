package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
)

const (
	queryCacheSize = 1000
	maxBodyBytes   = 1 << 20

	queryType = "Query"
)

//go:embed schema.graphqls
var schemaSDL string

var schema = gqlparser.MustLoadSchema(&ast.Source{
	Name:  "schema.graphqls",
	Input: schemaSDL,
})

var (
	errMissingQuery      = errors.New("no query provided")
	errUnknownOperation  = errors.New("operation not found")
	errUnsupportedMethod = errors.New("only GET and POST are supported")
)

// request is a single GraphQL request, over GET or POST
type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// response is the GraphQL response envelope
type response struct {
	Data   *fields       `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// field is a single response entry
type field struct {
	key   string
	value any
}

// fields is a response object that keeps the selection order
type fields []field

func (f fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, entry := range f {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(entry.key)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(entry.value)
		if err != nil {
			return nil, fmt.Errorf("unable to marshal %s: %w", entry.key, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Handler executes GraphQL queries against the resolver
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	cache    graphql.Cache[*ast.QueryDocument]
}

// NewHandler creates a new GraphQL query handler
func NewHandler(resolver *Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		resolver: resolver,
		cache:    lru.New[*ast.QueryDocument](queryCacheSize),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnsupportedMethod) {
			status = http.StatusMethodNotAllowed
		}

		writeResponse(w, status, &response{
			Errors: gqlerror.List{gqlerror.Wrap(err)},
		})

		return
	}

	resp, status := h.execute(r.Context(), req)

	writeResponse(w, status, resp)
}

// execute runs a single query operation
func (h *Handler) execute(ctx context.Context, req request) (*response, int) {
	doc, errs := h.load(ctx, req.Query)
	if len(errs) > 0 {
		return &response{Errors: errs}, http.StatusUnprocessableEntity
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return &response{
			Errors: gqlerror.List{gqlerror.Wrap(errUnknownOperation)},
		}, http.StatusUnprocessableEntity
	}

	if op.Operation != ast.Query {
		return &response{
			Errors: gqlerror.List{gqlerror.Errorf("unsupported operation %q", op.Operation)},
		}, http.StatusUnprocessableEntity
	}

	vars, err := validator.VariableValues(schema, op, req.Variables)
	if err != nil {
		return &response{
			Errors: gqlerror.List{gqlerror.WrapIfUnwrapped(err)},
		}, http.StatusUnprocessableEntity
	}

	var (
		data = fields{}
		out  = &response{}
	)

	for _, f := range collectFields(op.SelectionSet, queryType, vars, map[string]bool{}) {
		if f.Name == "__typename" {
			data = append(data, field{key: f.Alias, value: queryType})

			continue
		}

		value, err := h.resolve(ctx, f, vars)
		if err != nil {
			out.Errors = append(out.Errors, h.fieldError(f, err))
			data = append(data, field{key: f.Alias, value: nil})

			continue
		}

		data = append(data, field{key: f.Alias, value: complete(f, value, vars)})
	}

	out.Data = &data

	return out, http.StatusOK
}

// load parses and validates the query, reusing previously validated documents
func (h *Handler) load(ctx context.Context, query string) (*ast.QueryDocument, gqlerror.List) {
	if query == "" {
		return nil, gqlerror.List{gqlerror.Wrap(errMissingQuery)}
	}

	if doc, ok := h.cache.Get(ctx, query); ok {
		return doc, nil
	}

	doc, errs := gqlparser.LoadQueryWithRules(schema, query, nil)
	if len(errs) > 0 {
		return nil, errs
	}

	h.cache.Add(ctx, query, doc)

	return doc, nil
}

// resolve runs the root field resolver
func (h *Handler) resolve(ctx context.Context, f *ast.Field, vars map[string]any) (any, error) {
	args := f.ArgumentMap(vars)

	switch f.Name {
	case "offers":
		return h.resolver.Offers(ctx, args)
	case "convert":
		return h.resolver.Convert(ctx, args)
	case "snapshot":
		return h.resolver.Snapshot(ctx, args)
	default:
		return nil, fmt.Errorf("unknown field %q", f.Name)
	}
}

// fieldError logs the full failure and returns a sanitized field error
func (h *Handler) fieldError(f *ast.Field, err error) *gqlerror.Error {
	code := errorCode(err)

	h.logger.Debug(
		"unable to resolve field",
		"field", f.Name,
		"code", code,
		"err", err,
	)

	gqlErr := gqlerror.ErrorPathf(ast.Path{ast.PathName(f.Alias)}, "%s", publicError(code, err))
	gqlErr.Extensions = map[string]any{
		"code": code,
	}

	return gqlErr
}

// complete projects the resolved value onto the field's selection set
func complete(f *ast.Field, value any, vars map[string]any) any {
	switch v := value.(type) {
	case object:
		if v == nil {
			return nil
		}

		typeName, _ := v["__typename"].(string)
		out := fields{}

		for _, child := range collectFields(f.SelectionSet, typeName, vars, map[string]bool{}) {
			out = append(out, field{key: child.Alias, value: complete(child, v[child.Name], vars)})
		}

		return out
	case []object:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, complete(f, item, vars))
		}

		return out
	case time.Time:
		var buf bytes.Buffer

		graphql.MarshalTime(v).MarshalGQL(&buf)

		return json.RawMessage(buf.Bytes())
	default:
		return v
	}
}

// collectFields flattens the selection set for the object type,
// expanding fragments and applying @skip and @include
func collectFields(
	set ast.SelectionSet,
	typeName string,
	vars map[string]any,
	visited map[string]bool,
) []*ast.Field {
	var (
		out   []*ast.Field
		index = map[string]int{}
	)

	add := func(f *ast.Field) {
		i, ok := index[f.Alias]
		if !ok {
			index[f.Alias] = len(out)
			out = append(out, f)

			return
		}

		// Same response key, merge the sub-selections
		merged := *out[i]
		merged.SelectionSet = append(append(ast.SelectionSet{}, out[i].SelectionSet...), f.SelectionSet...)
		out[i] = &merged
	}

	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if !included(s.Directives, vars) {
				continue
			}

			add(s)
		case *ast.InlineFragment:
			if !included(s.Directives, vars) {
				continue
			}

			if s.TypeCondition != "" && s.TypeCondition != typeName {
				continue
			}

			for _, f := range collectFields(s.SelectionSet, typeName, vars, visited) {
				add(f)
			}
		case *ast.FragmentSpread:
			if visited[s.Name] || s.Definition == nil || !included(s.Directives, vars) {
				continue
			}

			if s.Definition.TypeCondition != typeName {
				continue
			}

			visited[s.Name] = true

			for _, f := range collectFields(s.Definition.SelectionSet, typeName, vars, visited) {
				add(f)
			}
		}
	}

	return out
}

// included evaluates the @skip and @include directives
func included(directives ast.DirectiveList, vars map[string]any) bool {
	for _, d := range directives {
		switch d.Name {
		case "skip":
			if skip, _ := d.ArgumentMap(vars)["if"].(bool); skip {
				return false
			}
		case "include":
			if include, ok := d.ArgumentMap(vars)["if"].(bool); ok && !include {
				return false
			}
		}
	}

	return true
}

// parseRequest reads the GraphQL request from the query string or JSON body
func parseRequest(w http.ResponseWriter, r *http.Request) (request, error) {
	var req request

	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()

		req.Query = query.Get("query")
		req.OperationName = query.Get("operationName")

		if v := query.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return request{}, fmt.Errorf("unable to parse variables: %w", err)
			}
		}
	case http.MethodPost:
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return request{}, fmt.Errorf("unable to parse request body: %w", err)
		}
	default:
		return request{}, errUnsupportedMethod
	}

	return req, nil
}

func writeResponse(w http.ResponseWriter, status int, resp *response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(resp) //nolint:errcheck // Fine to ignore
}
