package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bero-pm/internal/types"
)

func TestDirectDependencies(t *testing.T) {
	manifest := types.ProjectManifest{
		Dependencies: map[string]string{
			"a": "^1.0.0",
			"b": "~2.0.0",
		},
		DevDependencies: map[string]string{
			"b": "^9.0.0",
			"c": "",
		},
	}

	got := DirectDependencies(manifest, false)
	want := map[string]string{
		"a": "^1.0.0",
		"b": "~2.0.0",
		"c": "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected demand set (-want +got):\n%s", diff)
	}
}

func TestDirectDependenciesProduction(t *testing.T) {
	manifest := types.ProjectManifest{
		Dependencies:    map[string]string{"a": "^1.0.0"},
		DevDependencies: map[string]string{"c": "^1.0.0"},
	}
	got := DirectDependencies(manifest, true)
	want := map[string]string{"a": "^1.0.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected demand set (-want +got):\n%s", diff)
	}
}

func TestValidateManifest(t *testing.T) {
	require.NoError(t, ValidateManifest(types.ProjectManifest{
		Dependencies:    map[string]string{"a": "^1.0.0", "b": ""},
		DevDependencies: map[string]string{"c": ">=1.0.0, <2.0.0"},
	}))

	err := ValidateManifest(types.ProjectManifest{
		Dependencies: map[string]string{"a": ">>=broken"},
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "a")

	err = ValidateManifest(types.ProjectManifest{
		Dependencies: map[string]string{" ": "^1.0.0"},
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
