package graph

import (
	"io"
	"log/slog"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/go-chi/chi/v5"
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Setup sets up the GraphQL endpoint and playground on the given router
func Setup(engine Engine, router chi.Router, logger *slog.Logger) {
	if logger == nil {
		logger = noopLogger
	}

	router.Handle("/graphql/query", NewHandler(NewResolver(engine), logger))
	router.Handle("/graphql", playground.Handler("p2prates: GraphQL playground", "/graphql/query"))
}
