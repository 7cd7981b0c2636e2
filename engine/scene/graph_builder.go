package scene

// GraphBuilderOption is a functional option for configuring a Graph.
// Use the With* functions to create options.
type GraphBuilderOption func(g *graph)

// WithName sets the display name of the asset.
//
// Parameters:
//   - name: the asset name
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithName(name string) GraphBuilderOption {
	return func(g *graph) {
		g.name = name
	}
}

// WithResolver sets the resolver used to fetch external resources referenced by the asset.
//
// Parameters:
//   - r: the resolver (nil for in-memory sources)
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithResolver(r Resolver) GraphBuilderOption {
	return func(g *graph) {
		g.resolver = r
	}
}
