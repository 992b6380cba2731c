package constant

import "os"

// <NodeDir>/                    (e.g., /home/bench/.neonbench)
// └── config/
//	└── neonbench_config.json
// └── state/
//	└── contracts.json
//	└── accounts.json
//	└── transactions.json
// └── databases/
//	└── runs.db
// └── payer.json

const (
	NodeDir = ".neonbench"

	ConfigSubdir   = "config"
	ConfigFileName = "neonbench_config.json"

	StateSubdir = "state"

	ContractsFileName    = "contracts.json"
	AccountsFileName     = "accounts.json"
	TransactionsFileName = "transactions.json"

	DatabasesSubdir = "databases"
	RunsDBFileName  = "runs.db"

	PayerKeyFileName = "payer.json"

	EnvPrefix = "NEONBENCH"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir
