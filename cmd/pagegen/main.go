package main

import (
	"flag"
	"log"

	"github.com/pagepilot/pagectl/internal/config"
)

func main() {
	kind := flag.String("kind", "director", "config kind: director|pilot")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			switch *kind {
			case "director":
				path = "cmd/directorctl/config.toml"
			case "pilot":
				path = "cmd/pilotctl/config.toml"
			default:
				log.Fatalf("unknown kind: %s", *kind)
			}
		}

		switch *kind {
		case "director":
			if _, err := config.LoadDirectorConfig(path); err != nil {
				log.Fatal(err)
			}
		case "pilot":
			if _, err := config.LoadPilotConfig(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("config ok: %s", path)
		return
	}

	path := *output
	if path == "" {
		switch *kind {
		case "director":
			path = "cmd/directorctl/config.toml"
		case "pilot":
			path = "cmd/pilotctl/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}
	if err := config.WriteTemplate(path, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s template: %s", *kind, path)
}
