package main

import (
	"flag"
	"log"
	"strings"

	"github.com/exbotanical/seance/internal/config"
)

func main() {
	kind := flag.String("kind", "medium", "config kind: medium|sitter")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	normalized := strings.ToLower(strings.TrimSpace(*kind))

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(normalized)
		}
		if err := validateConfig(normalized, path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", normalized, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(normalized)
	}
	if err := config.WriteTemplate(target, normalized, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", normalized, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "medium":
		return "cmd/mediumctl/config.toml"
	case "sitter":
		return "cmd/sitterctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func validateConfig(kind, path string) error {
	switch kind {
	case "medium":
		_, err := config.LoadMediumConfig(path)
		return err
	case "sitter":
		_, err := config.LoadSitterConfig(path)
		return err
	default:
		log.Fatalf("unknown kind: %s", kind)
		return nil
	}
}
