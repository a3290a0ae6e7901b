// Package main is the entry point for the neuralnotes API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/neuralnotes/pkg/api"
	"github.com/james-see/neuralnotes/pkg/config"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	configFile := flag.String("config", "", "YAML settings file")
	flag.Parse()

	conf := config.Default()
	if *configFile != "" {
		var err error
		if conf, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Starting neuralnotes API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, conf); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
