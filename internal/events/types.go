// SPDX-License-Identifier: MPL-2.0

// Package events carries the signals the engine publishes to its shell:
// database swaps, install phase transitions, install completion and busy
// state changes. Delivery is synchronous: Emit returns after every matching
// handler has run.
package events

import (
	"time"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

const (
	// TypeDatabaseChanged is emitted after a local or remote snapshot swap.
	TypeDatabaseChanged Type = "database_changed"
	// TypeInstallProgress is emitted at every install phase transition and
	// while bytes are downloaded.
	TypeInstallProgress Type = "install_progress"
	// TypeInstallComplete is emitted once per plan entry when it finishes.
	TypeInstallComplete Type = "install_complete"
	// TypeBusyChanged is emitted when a mod enters or leaves the in-flight set.
	TypeBusyChanged Type = "busy_changed"

	// DatabaseLocal names the local database.
	DatabaseLocal Database = "local"
	// DatabaseRemote names the remote database.
	DatabaseRemote Database = "remote"

	// PhaseQueued means the entry waits for a worker or its dependencies.
	PhaseQueued Phase = "queued"
	// PhaseDownloading means the archive is being fetched.
	PhaseDownloading Phase = "downloading"
	// PhaseVerifying means the archive is being checked before extraction.
	PhaseVerifying Phase = "verifying"
	// PhaseExtracting means files are written to the staging directory.
	PhaseExtracting Phase = "extracting"
	// PhaseRegistering means the staged directory is swapped in and recorded.
	PhaseRegistering Phase = "registering"
	// PhaseRemoving means an installed mod is being deleted.
	PhaseRemoving Phase = "removing"
	// PhaseDone means the entry finished, successfully or not.
	PhaseDone Phase = "done"

	// OutcomeAlreadySatisfied means the installed copy already met the plan.
	OutcomeAlreadySatisfied Outcome = "already_satisfied"
	// OutcomeInstalled means the mod was freshly installed.
	OutcomeInstalled Outcome = "installed"
	// OutcomeUpdated means an existing install was replaced.
	OutcomeUpdated Outcome = "updated"
	// OutcomeEnabled means an installed mod was turned on.
	OutcomeEnabled Outcome = "enabled"
	// OutcomeDisabled means an installed mod was turned off.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeUninstalled means the mod was removed.
	OutcomeUninstalled Outcome = "uninstalled"
	// OutcomeFailed means the entry failed; the event carries the error.
	OutcomeFailed Outcome = "failed"
)

type (
	// Type identifies the kind of event.
	Type string

	// Database names which database changed.
	Database string

	// Phase is a step of the installation pipeline.
	Phase string

	// Outcome is the final state of one plan entry.
	Outcome string

	// Event is one published signal. Data holds the typed payload matching Type.
	Event struct {
		ID        string
		Type      Type
		Timestamp time.Time
		Data      any
	}

	// DatabaseChangedData is the payload of TypeDatabaseChanged.
	DatabaseChangedData struct {
		Database Database
		Count    int
	}

	// InstallProgressData is the payload of TypeInstallProgress. Total is zero
	// when the size of the phase is not known in advance.
	InstallProgressData struct {
		InstallID string
		Mod       owmod.UniqueName
		Phase     Phase
		Current   int64
		Total     int64
	}

	// InstallCompleteData is the payload of TypeInstallComplete.
	InstallCompleteData struct {
		InstallID string
		Mod       owmod.UniqueName
		Outcome   Outcome
		Version   string
		Err       error
	}

	// BusyChangedData is the payload of TypeBusyChanged.
	BusyChangedData struct {
		Mod  owmod.UniqueName
		Busy bool
	}
)

// Succeeded reports whether the outcome leaves the mod in the requested state.
func (o Outcome) Succeeded() bool {
	return o != OutcomeFailed && o != ""
}
