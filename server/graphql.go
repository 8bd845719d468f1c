package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
)

// LoaderAttacher installs per-request dataloaders into the context.
// *graph.Builder implements it.
type LoaderAttacher interface {
	WithLoaders(ctx context.Context) context.Context
}

// GraphQLHandler serves the /graphql endpoint.
type GraphQLHandler struct {
	schema  graphql.Schema
	loaders LoaderAttacher
}

// NewGraphQLHandler creates a GraphQLHandler.
func NewGraphQLHandler(schema graphql.Schema, loaders LoaderAttacher) *GraphQLHandler {
	return &GraphQLHandler{schema: schema, loaders: loaders}
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// ServeHTTP executes one GraphQL request. Execution errors are reported in
// the response body with a 200 status; only malformed requests get a 4xx.
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := h.loaders.WithLoaders(r.Context())

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})

	writeJSON(w, http.StatusOK, result)
}
