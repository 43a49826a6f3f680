package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/polesapart/populatefs/pkg/image"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func printVersion(ctx context.Context, w io.Writer, debugfs string) {
	fmt.Fprintf(w, "populatefs %s\n", version)
	banner, err := image.DebugfsVersion(ctx, debugfs)
	if err != nil {
		fmt.Fprintf(w, "\t%v\n", err)
		return
	}
	for _, line := range strings.Split(banner, "\n") {
		fmt.Fprintf(w, "\t%s\n", strings.TrimSpace(line))
	}
}
