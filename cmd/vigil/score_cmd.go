package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vigil/internal/domain"
	"vigil/internal/infra/drift"
)

func runScore(args []string) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var imagePath string
	var referencePath string
	var method string
	var threshold float64

	fs.StringVar(&imagePath, "image", "", "candidate image path")
	fs.StringVar(&referencePath, "reference", "", "reference image path")
	fs.StringVar(&method, "method", "", "comparison method (embedding|phash|ssim); empty runs the cascade")
	fs.Float64Var(&threshold, "threshold", 0.35, "breach threshold in [0,1]")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if imagePath == "" || referencePath == "" {
		fmt.Fprintln(os.Stderr, "score requires --image and --reference")
		return 1
	}
	if method != "" && !domain.DriftMethod(method).Valid() {
		fmt.Fprintf(os.Stderr, "unknown method %q\n", method)
		return 1
	}

	candidate, err := loadArtifact(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		return 1
	}
	reference, err := loadArtifact(referencePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read reference: %v\n", err)
		return 1
	}

	ctx := context.Background()
	var embedder drift.Embedder
	if os.Getenv("GEMINI_API_KEY") != "" {
		if gemini, err := drift.NewGeminiEmbedder(ctx, os.Getenv("EMBEDDING_MODEL")); err == nil {
			embedder = gemini
		}
	}

	for _, strategy := range drift.Cascade(embedder) {
		if method != "" && strategy.Method() != domain.DriftMethod(method) {
			continue
		}
		if !strategy.Available() {
			if method != "" {
				fmt.Fprintf(os.Stderr, "method %s unavailable\n", method)
				return 1
			}
			continue
		}
		score, err := strategy.Score(ctx, candidate, reference)
		if err != nil {
			if method != "" {
				fmt.Fprintf(os.Stderr, "score via %s: %v\n", method, err)
				return 1
			}
			continue
		}
		fmt.Printf("method=%s score=%.4f threshold=%.2f breached=%t\n",
			strategy.Method(), score, threshold, score > threshold)
		return 0
	}

	fmt.Fprintln(os.Stderr, "no comparison method could score the pair")
	return 1
}

func loadArtifact(path string) (domain.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Artifact{}, err
	}
	mime := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	}
	return domain.Artifact{ID: filepath.Base(path), Data: data, MIMEType: mime}, nil
}
