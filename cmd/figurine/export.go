package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-figure/engine/upload"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := configFlag(fs)
	srcFlag := fs.String("src", "", "asset URL or path")
	colorsPath := fs.String("colors", "", "YAML map of part id to color")
	outPath := fs.String("out", "", "write the GLB to this file")
	putURL := fs.String("put", "", "upload the GLB to this presigned URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*outPath == "") == (*putURL == "") {
		return fmt.Errorf("exactly one of -out or -put is required")
	}
	src, err := parseSource(*srcFlag)
	if err != nil {
		return err
	}
	colors, err := readColors(*colorsPath)
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
	if err := v.ApplyCustomizations(colors); err != nil {
		a.logger.Warn("some colors were not applied", zap.Error(err))
	}

	artifact, err := v.Export(ctx)
	if err != nil {
		return err
	}

	if *putURL != "" {
		up := upload.NewUploader(upload.WithLogger(a.logger))
		if err := up.Upload(ctx, *putURL, *artifact); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "uploaded %s (%d bytes)\n", artifact.ID, artifact.SizeBytes)
		return nil
	}

	path, err := homedir.Expand(*outPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, artifact.Bytes, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", path, artifact.SizeBytes)
	return nil
}
