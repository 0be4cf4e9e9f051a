package store

import (
	"time"

	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/config"
)

// #region version
// Version is one persisted configuration. Snapshot is stamped with ID.
type Version struct {
	ID        string
	ParentID  string
	Reason    string
	Source    string
	CreatedAt time.Time
	Snapshot  *config.Snapshot
}
// #endregion version

// #region commit
// Commit describes one atomic change to the store. Parent must be the
// active version when the transaction runs. A nil Snapshot commits only the
// audit rows against Parent.
type Commit struct {
	Parent   string
	Snapshot *config.Snapshot
	Reason   string
	Source   string
	History  []audit.WeightChange
	Run      *audit.CalibrationRun
}
// #endregion commit
