package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pelorus-marine/pelorus/internal/access"
)

type stubCheckRepo struct {
	roles     []access.Role
	overrides []access.Override
	err       error
}

func (s stubCheckRepo) Roles(ctx context.Context) ([]access.Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles, nil
}

func (s stubCheckRepo) Overrides(ctx context.Context) ([]access.Override, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.overrides, nil
}

func TestCheckCommandJSONClean(t *testing.T) {
	repo := stubCheckRepo{
		roles: []access.Role{{
			ID:          1,
			Name:        "ops-staff",
			Kind:        access.RoleStandard,
			Status:      access.RoleActive,
			Permissions: access.NewPermissionSet("voyage.view", "voyage.edit"),
		}},
		overrides: []access.Override{{
			UserID:     7,
			RoleID:     1,
			Additional: access.NewPermissionSet("report.export"),
			Excluded:   access.NewPermissionSet("voyage.edit"),
		}},
	}
	cli, err := NewOverrideCheckCLI(repo)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.CheckCommand(context.Background(), OverrideCheckOptions{
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary OverrideCheckSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, 1, summary.Checked)
	require.Empty(t, summary.Violations)
}

func TestCheckCommandJSONViolations(t *testing.T) {
	repo := stubCheckRepo{
		roles: []access.Role{{
			ID:          1,
			Name:        "ops-staff",
			Kind:        access.RoleStandard,
			Status:      access.RoleActive,
			Permissions: access.NewPermissionSet("voyage.view"),
		}},
		overrides: []access.Override{
			{
				// Redundant grant: voyage.view is already in the baseline.
				UserID:     7,
				RoleID:     1,
				Additional: access.NewPermissionSet("voyage.view"),
			},
			{
				// Exclusion outside the baseline.
				UserID:   8,
				RoleID:   1,
				Excluded: access.NewPermissionSet("report.export"),
			},
		},
	}
	cli, err := NewOverrideCheckCLI(repo)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.CheckCommand(context.Background(), OverrideCheckOptions{
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 10, exitCode)
	require.Empty(t, stderr.String())

	var summary OverrideCheckSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Violations, 2)
	require.Equal(t, int64(7), summary.Violations[0].UserID)
	require.Equal(t, int64(8), summary.Violations[1].UserID)
}

func TestCheckCommandRepositoryError(t *testing.T) {
	cli, err := NewOverrideCheckCLI(stubCheckRepo{err: errors.New("connection refused")})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.CheckCommand(context.Background(), OverrideCheckOptions{
		Stdout: stdout,
		Stderr: stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "connection refused")
}
