package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pelorus-marine/pelorus/internal/access"
)

// CheckRepository supplies the stored roles and overrides to verify.
type CheckRepository interface {
	Roles(ctx context.Context) ([]access.Role, error)
	Overrides(ctx context.Context) ([]access.Override, error)
}

// OverrideCheckCLI verifies that every stored override still satisfies
// the engine invariants against its holder's current role. Overrides only
// drift when rows are edited outside the application, so this is a
// migration and incident tool, not a routine job.
type OverrideCheckCLI struct {
	repo CheckRepository
}

// NewOverrideCheckCLI constructs a checker over the given repository.
func NewOverrideCheckCLI(repo CheckRepository) (*OverrideCheckCLI, error) {
	if repo == nil {
		return nil, fmt.Errorf("check cli: repository is required")
	}
	return &OverrideCheckCLI{repo: repo}, nil
}

// OverrideCheckOptions defines available flags for the check command.
type OverrideCheckOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// OverrideCheckSummary describes the JSON response for the check command.
type OverrideCheckSummary struct {
	OK         bool                `json:"ok"`
	Checked    int                 `json:"checked"`
	Violations []OverrideViolation `json:"violations"`
}

// OverrideViolation captures one invariant breach.
type OverrideViolation struct {
	UserID int64  `json:"user_id"`
	RoleID int64  `json:"role_id"`
	Reason string `json:"reason"`
}

// CheckCommand executes the verification and prints the outcome. It
// returns 0 when every override is clean, 10 when violations exist and 1
// on infrastructure failure.
func (c *OverrideCheckCLI) CheckCommand(ctx context.Context, opts OverrideCheckOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	roleList, err := c.repo.Roles(ctx)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "load roles: %v\n", err)
		return 1
	}
	rolesByID := make(map[int64]access.Role, len(roleList))
	for _, r := range roleList {
		rolesByID[r.ID] = r
	}

	overrides, err := c.repo.Overrides(ctx)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "load overrides: %v\n", err)
		return 1
	}

	summary := OverrideCheckSummary{OK: true, Checked: len(overrides), Violations: []OverrideViolation{}}
	for _, ov := range overrides {
		var role *access.Role
		if r, ok := rolesByID[ov.RoleID]; ok {
			role = &r
		}
		if err := access.ValidateOverride(ov, role); err != nil {
			summary.OK = false
			summary.Violations = append(summary.Violations, OverrideViolation{
				UserID: ov.UserID,
				RoleID: ov.RoleID,
				Reason: err.Error(),
			})
		}
	}
	sort.Slice(summary.Violations, func(i, j int) bool {
		return summary.Violations[i].UserID < summary.Violations[j].UserID
	})

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "encode summary: %v\n", err)
			return 1
		}
	} else {
		fmt.Fprintf(opts.Stdout, "checked %d overrides\n", summary.Checked)
		for _, v := range summary.Violations {
			fmt.Fprintf(opts.Stdout, "user %d (role %d): %s\n", v.UserID, v.RoleID, v.Reason)
		}
		if summary.OK {
			fmt.Fprintln(opts.Stdout, "ok")
		}
	}

	if !summary.OK {
		return 10
	}
	return 0
}
