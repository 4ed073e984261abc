package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/query"
	"codegraph/internal/resolver"
	"codegraph/internal/storage"
)

func newQueryCmd() *cobra.Command {
	var (
		limit  int
		refs   bool
		route  string
		pathTo string
	)

	cmd := &cobra.Command{
		Use:   "query [symbol]",
		Short: "Resolve symbols, routes, references, and paths against a saved snapshot",
		Example: `  codegraph query get_user
  codegraph query backend.services.user_service.get_user
  codegraph query --route "GET /users/42"
  codegraph query get_user --refs
  codegraph query handle_request --path-to get_user`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if route == "" && len(args) == 0 {
				return errors.New("a symbol query or --route is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			surface, cleanup, err := openSnapshot(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if route != "" {
				return runRouteQuery(surface, route)
			}

			matches, err := surface.Resolve(args[0], limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Printf("No matches for %q\n", args[0])
				return nil
			}

			for _, m := range matches {
				printNode(m.Node, m.Confidence)
			}

			if refs {
				return printReferences(surface, matches[0].Node)
			}
			if pathTo != "" {
				return printPath(surface, matches[0].Node, pathTo)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of matches")
	cmd.Flags().BoolVar(&refs, "refs", false, "list nodes referencing the best match")
	cmd.Flags().StringVar(&route, "route", "", `match a concrete request, e.g. "GET /users/42"`)
	cmd.Flags().StringVar(&pathTo, "path-to", "", "shortest edge path from the best match to this symbol")

	return cmd
}

// openSnapshot loads the saved graph and rebuilds the derived indexes
// without re-running resolution; queries must not mutate the snapshot.
func openSnapshot(cfg *config.Config) (*query.Surface, func(), error) {
	snapPath := (&app{cfg: cfg}).snapshotPath()

	snap, err := storage.Open(snapPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot %s (run 'codegraph index' first): %w", snapPath, err)
	}
	store, diags, err := snap.Load()
	if err != nil {
		snap.Close()
		return nil, nil, fmt.Errorf("loading snapshot: %w", err)
	}
	_ = snap.Close()

	sink := resolver.NewDiagnosticSink()
	for _, d := range diags {
		sink.Record(d)
	}

	res, err := resolver.New(store, sink,
		resolver.WithCollisionPolicy(resolver.CollisionPolicy(cfg.Resolver.CollisionPolicy)))
	if err != nil {
		return nil, nil, err
	}
	// Diagnostics were restored from the snapshot; rebuild the indexes
	// silently so collisions are not reported twice.
	res.Indexes().Rebuild(store, nil)

	surface, err := query.NewSurface(store, res)
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	if err := surface.Refresh(); err != nil {
		_ = surface.Close()
		res.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = surface.Close()
		res.Close()
	}
	return surface, cleanup, nil
}

func runRouteQuery(surface *query.Surface, route string) error {
	parts := strings.Fields(route)
	if len(parts) != 2 {
		return fmt.Errorf(`invalid route query %q (want "METHOD /path")`, route)
	}
	nodes := surface.MatchRoute(parts[0], parts[1])
	if len(nodes) == 0 {
		fmt.Printf("No routes match %s %s\n", parts[0], parts[1])
		return nil
	}
	for _, n := range nodes {
		printNode(n, 0)
		for _, e := range surface.EdgesFrom(n.ID, graph.EdgeRoutesTo) {
			if handler, ok := surface.Node(e.To); ok {
				fmt.Printf("    -> %s (%s:%d, confidence %.2f)\n",
					handler.Name, handler.File, handler.Span.StartLine, e.Confidence)
			}
		}
	}
	return nil
}

func printReferences(surface *query.Surface, node graph.Node) error {
	referrers, err := surface.References(node.ID)
	if err != nil {
		return err
	}
	if len(referrers) == 0 {
		fmt.Printf("No references to %s\n", node.Name)
		return nil
	}
	fmt.Printf("References to %s:\n", node.Name)
	for _, r := range referrers {
		printNode(r, 0)
	}
	return nil
}

func printPath(surface *query.Surface, from graph.Node, target string) error {
	targets, err := surface.Resolve(target, 1)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no match for path target %q", target)
	}
	path, err := surface.Path(from.ID, targets[0].Node.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Path from %s to %s:\n", from.Name, targets[0].Node.Name)
	for i, id := range path {
		node, ok := surface.Node(id)
		if !ok {
			continue
		}
		fmt.Printf("  %d. %s %s (%s:%d)\n", i+1, node.Kind, node.Name, node.File, node.Span.StartLine)
	}
	return nil
}

func printNode(n graph.Node, confidence float64) {
	loc := fmt.Sprintf("%s:%d", n.File, n.Span.StartLine)
	if confidence > 0 {
		fmt.Printf("  %-8s %-30s %s (%.2f)\n", n.Kind, n.Name, loc, confidence)
		return
	}
	fmt.Printf("  %-8s %-30s %s\n", n.Kind, n.Name, loc)
}
