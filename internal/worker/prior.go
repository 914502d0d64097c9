package worker

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"web3mail/internal/external"
)

// completedValidationQuery lists completed tasks of whitelisted apps on a
// dataset that reported a callback.
const completedValidationQuery = `query ($dataset: String!, $apps: [String!]!) {
  tasks(
    where: { resultsCallback_not: "0x", status: COMPLETED, deal_: { dataset: $dataset, app_in: $apps } }
  ) {
    resultsCallback
  }
}`

// hasPriorValidation reports whether a previous task of a whitelisted app
// already validated the email of dataset. Query failures count as "no".
func hasPriorValidation(ctx context.Context, graph external.GraphQuerier, dataset string, apps []string, logger *slog.Logger) bool {
	if dataset == "" || len(apps) == 0 {
		return false
	}

	var out struct {
		Tasks []struct {
			ResultsCallback string `json:"resultsCallback"`
		} `json:"tasks"`
	}
	err := graph.Query(ctx, completedValidationQuery, map[string]any{
		"dataset": dataset,
		"apps":    apps,
	}, &out)
	if err != nil {
		logger.Warn("prior validation lookup failed", "error", err)
		return false
	}

	for _, t := range out.Tasks {
		if callbackValid(t.ResultsCallback) {
			return true
		}
	}
	return false
}

// callbackValid reads a callback payload as a 32-byte big-endian word and
// reports whether its lowest bit is set.
func callbackValid(payload string) bool {
	b, err := hexutil.Decode(payload)
	if err != nil || len(b) != 32 {
		return false
	}
	return b[31]&callbackBitValid != 0
}
