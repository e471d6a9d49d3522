package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "score":
		return runScore(args[2:])
	case "peek":
		return runPeek(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "vigil"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s score --image <file> --reference <file> [--method embedding|phash|ssim] [--threshold <float>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s peek [--limit <n>] [--session <id>]\n", name)
}
