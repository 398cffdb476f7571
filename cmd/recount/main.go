// Command recount recomputes every tool's score and vote_count from a full
// scan of the vote ledger. It exists as an offline repair tool; the serving
// path keeps aggregates in step transactionally and never depends on this.
package main

import (
	"os"

	"rankedbyus/internal/db"
	"rankedbyus/internal/logging"
	"rankedbyus/internal/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// env vars may come from the environment directly
	}
	logging.Init()
	db.Init()

	repaired, err := services.RecountAll(db.DB)
	if err != nil {
		logging.L().Error().Err(err).Msg("recount aborted")
		os.Exit(1)
	}

	if repaired == 0 {
		logging.L().Info().Msg("all aggregates already consistent")
		return
	}
	logging.L().Warn().Int("repaired", repaired).Msg("aggregates had drifted and were repaired")
}
