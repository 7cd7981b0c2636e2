// Command figurine inspects, customizes, exports, thumbnails and views glTF figurines.
//
// Usage:
//
//	figurine inspect -src hero.glb                                  # list parts and bindings
//	figurine export  -src hero.glb -colors colors.yaml -out out.glb # recolor and write a GLB
//	figurine export  -src hero.glb -colors colors.yaml -put <url>   # recolor and upload
//	figurine thumbs  -manifest jobs.yaml -out thumbs/               # batch WebP thumbnails
//	figurine view    -src hero.glb -colors colors.yaml              # interactive viewer
//	figurine version
//
// Every command accepts -config <file.yaml|file.toml>; FIGURINE_* variables override the file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = []command{
	{"inspect", "load an asset and list its customizable parts", runInspect},
	{"export", "apply colors and write or upload a GLB", runExport},
	{"thumbs", "render WebP thumbnails for a manifest of assets", runThumbs},
	{"view", "open an interactive viewer window", runView},
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch name := os.Args[1]; name {
	case "version":
		fmt.Printf("figurine %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		cmd, ok := lookup(name)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", name)
			printUsage(os.Stderr)
			os.Exit(2)
		}
		if err := cmd.run(ctx, os.Args[2:], os.Stdout); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return
			}
			fmt.Fprintf(os.Stderr, "figurine %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: figurine <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "  %-8s %s\n", "version", "print the version")
}
