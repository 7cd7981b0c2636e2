package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/Carmen-Shannon/oxy-figure/engine/binder"
	"github.com/Carmen-Shannon/oxy-figure/engine/viewer"

	"github.com/muesli/termenv"
)

func runInspect(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := configFlag(fs)
	srcFlag := fs.String("src", "", "asset URL or path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := parseSource(*srcFlag)
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	v := a.newViewer()
	defer v.Close()
	if err := v.Load(ctx, src); err != nil {
		return err
	}

	report(termenv.NewOutput(stdout), src.String(), v)
	return nil
}

// report prints the graph summary, one line per part with a color swatch, and the binding diagnostics.
func report(out *termenv.Output, name string, v viewer.Viewer) {
	g := v.Graph()
	fmt.Fprintf(out, "%s  %s\n", out.String(name).Bold(), out.String(fmt.Sprintf("(%d meshes)", len(g.MeshNodes()))).Faint())
	if t, ok := v.Normalization(); ok {
		size := t.Bounds.Size()
		fmt.Fprintf(out, "  authored size %.3f x %.3f x %.3f, scale %.4f\n", size[0], size[1], size[2], t.Scale)
	}

	bindings := v.Bindings()
	if len(bindings) == 0 {
		fmt.Fprintln(out, "  no parts declared")
	}
	for _, b := range bindings {
		swatch := "      "
		hex := "-"
		if c, ok := v.AppliedColor(b.PartID); ok {
			hex = c.Hex()
			swatch = out.String(swatch).Background(out.Color(hex[:7])).String()
		}
		fmt.Fprintf(out, "  %s %-16s %-10s %s\n", swatch, b.PartID, hex, nodeNames(b))
	}

	for _, d := range v.Diagnostics() {
		line := fmt.Sprintf("  %s %s", d.Kind, d.PartID)
		switch {
		case d.Kind == binder.DiagAmbiguous && d.Node != nil:
			line += fmt.Sprintf(": %q also matched by %v", d.Node.Name, d.Losers)
		case d.Suggestion != "":
			line += fmt.Sprintf(": did you mean %q?", d.Suggestion)
		}
		fmt.Fprintln(out, out.String(line).Foreground(out.Color("3")))
	}
}

func nodeNames(b binder.Binding) string {
	if b.Empty() {
		return "(unbound)"
	}
	names := make([]string, 0, len(b.Nodes))
	for _, n := range b.Nodes {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	return fmt.Sprint(names)
}
