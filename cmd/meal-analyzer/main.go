package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/meal-analyzer/internal/config"
	"github.com/menta2k/meal-analyzer/internal/utils"
	"github.com/menta2k/meal-analyzer/pkg/processing"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

func main() {
	var in, outDir, configPath, envFile string
	var backend, url, model string
	var detections, names string
	var overlay, probe, writeConfig bool

	flag.StringVar(&in, "in", "", "input image path, URL or directory (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "", "output directory for result JSON and overlays (default: stdout only)")
	flag.StringVar(&configPath, "config", "", "config file (default: "+config.GetConfigPath()+" if present)")
	flag.StringVar(&envFile, "env", ".env", "env file with MEAL_* overrides")

	flag.StringVar(&backend, "backend", "", "vision backend: ollama, llamacpp or none")
	flag.StringVar(&url, "url", "", "vision server URL")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&detections, "detections", "", "replay detections from a JSON file instead of running the ONNX detector")
	flag.StringVar(&names, "names", "", "code to name table (.json or SQLite .db)")

	flag.BoolVar(&overlay, "overlay", false, "write debug overlay images (requires -out)")
	flag.BoolVar(&probe, "probe", false, "ask the vision model to describe the input and exit")
	flag.BoolVar(&writeConfig, "write-config", false, "write the effective config to -config (or the default path) and exit")

	flag.Parse()

	if err := config.LoadEnv(envFile); err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyEnv()
	if backend != "" {
		cfg.Vision.Backend = backend
	}
	if url != "" {
		cfg.Vision.URL = url
	}
	if model != "" {
		cfg.Vision.Model = model
	}
	if detections != "" {
		cfg.Detector.Type = "static"
		cfg.Detector.StaticPath = detections
	}
	if names != "" {
		cfg.Names.Path = names
	}
	if overlay {
		cfg.Output.Overlay = true
	}
	if outDir != "" {
		cfg.Output.OutputDir = outDir
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if writeConfig {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := cfg.SaveToFile(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", path)
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in tray.jpg|URL|dir [-config config.json] [-backend ollama|llamacpp|none] [-url server_url] [-detections dets.json] [-names foods.json] [-out outdir] [-overlay]", filepath.Base(os.Args[0]))
	}

	ctx := context.Background()
	logger := log.New(os.Stderr, "", log.LstdFlags)

	app, err := build(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	if probe {
		if app.identifier == nil {
			log.Fatal("probe needs a vision backend")
		}
		img, err := app.analyzer.LoadImage(in)
		if err != nil {
			log.Fatal(err)
		}
		reply, err := app.identifier.TestVision(ctx, img)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(reply)
		return
	}

	inputs := []string{in}
	if utils.DirExists(in) {
		inputs, err = utils.ListImageFiles(in)
		if err != nil {
			log.Fatal(err)
		}
		if len(inputs) == 0 {
			log.Fatalf("no images found in %s", in)
		}
	}

	writeFiles := outDir != "" || cfg.Output.Overlay
	if writeFiles {
		if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
			log.Fatal(err)
		}
	}

	processor := processing.NewProcessor()
	failures := 0
	for _, input := range inputs {
		img, err := app.analyzer.LoadImage(input)
		if err != nil {
			log.Printf("%s: %v", input, err)
			failures++
			continue
		}

		result, err := app.analyzer.AnalyzeImage(ctx, img)
		if err != nil {
			log.Printf("%s: %v", input, err)
			failures++
		}
		logResult(input, result)

		js, err := encodeResult(result)
		if err != nil {
			log.Printf("%s: encode result: %v", input, err)
			failures++
			continue
		}
		if !writeFiles {
			fmt.Println(string(js))
			continue
		}

		jsonPath := utils.GenerateOutputFilename(input, cfg.Output.OutputDir, "", "_items", "json")
		if err := os.WriteFile(jsonPath, js, 0o644); err != nil {
			log.Printf("save %s failed: %v", jsonPath, err)
		} else {
			log.Printf("wrote %s", jsonPath)
		}

		if cfg.Output.Overlay && result != nil && result.Success {
			format := strings.ToLower(cfg.Output.OverlayFormat)
			dbgPath := utils.GenerateOutputFilename(input, cfg.Output.OutputDir, "", "_overlay", format)
			dbg := app.analyzer.Overlay(img, result)
			if err := processor.SaveImage(dbg, dbgPath, format, cfg.Output.Quality, false); err != nil {
				log.Printf("overlay save %s failed: %v", dbgPath, err)
			} else {
				log.Printf("wrote %s", dbgPath)
			}
		}
	}

	if failures > 0 {
		log.Fatalf("%d of %d images failed", failures, len(inputs))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

// encodeResult renders a result as indented JSON
func encodeResult(result *types.AnalysisResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

func logResult(input string, result *types.AnalysisResult) {
	if result == nil || !result.Success {
		return
	}
	log.Printf("%s: %d items (strategy=%s)", filepath.Base(input), len(result.Items), result.Strategy)
	for _, item := range result.Items {
		log.Printf("  %-9s %s %q conf=%.2f box=%s", item.Source, item.Code, item.DisplayName, item.LocalConfidence, item.Box)
	}
}
