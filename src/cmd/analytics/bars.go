package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/utils"
)

func loadBars(repo *models.BarRepository, paths []string) error {
	for _, path := range paths {
		r, err := utils.OpenText(path)
		if err != nil {
			return err
		}

		n, err := repo.LoadCSV(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("failed to load bars from %s: %w", path, err)
		}

		log.Infof("loaded %d bars from %s", n, path)
	}

	return nil
}
