// Command movieetl runs the movie ratings medallion pipeline.
package main

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	// every source scheme and storage backend is compiled in; the pipeline
	// file picks one.
	_ "movieetl/internal/datasource/all"
	_ "movieetl/internal/storage/all"
)

func main() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		log.WithField("cause", errors.Cause(err).Error()).Errorf("movieetl: %v", err)
		os.Exit(1)
	}
}
