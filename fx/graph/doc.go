// Package graph defines the declarative effect graph: typed nodes, the
// connections between them, the panel controls bound to their parameters,
// and the parameter schema shared by compilation and live automation.
//
// Node kinds form a closed set. Each kind carries its own Params struct, so
// consumers dispatch with a type switch rather than by comparing type names:
//
//	switch p := node.Params.(type) {
//	case graph.DelayParams:
//		...
//	case graph.UnknownParams:
//		// not a kind this engine knows
//	}
//
// Definitions decode from the JSON shape produced by the graph generator:
//
//	{"nodes":[{"id":"in","type":"input"}, ...],
//	 "connections":[{"from":{"nodeId":"in"},"to":{"nodeId":"out"}}]}
package graph
