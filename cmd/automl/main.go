// automl runs model selection, tuning and final training over a tabular file
// and serves predictions from the saved models.
//
// Usage:
//
//	automl run --data <file> --target <column> --task <classification|regression>
//	automl status <report-id|task-id>
//	automl report <report-id|task-id>
//	automl predict --model <key> --task <task> --features 1.5,2,3
//	automl models
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
