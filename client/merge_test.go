package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivo-us/request-handler/quotas"
)

func TestFlatten_RenamesChildToParentColonChild(t *testing.T) {
	parent := Spec{
		Name:      "search",
		RateLimit: quotas.Spec{Type: quotas.TypeTokenBucket, MaxTokens: 10},
		SubClients: []Spec{
			{Name: "images"},
		},
	}

	out := Flatten([]Spec{parent})
	require.Len(t, out, 2)
	assert.Equal(t, "search", out[0].Name)
	assert.Empty(t, out[0].SubClients)
	assert.Equal(t, "search:images", out[1].Name)
	assert.Empty(t, out[1].SubClients)
}

func TestFlatten_ChildInheritsParentRateLimitWhenUnset(t *testing.T) {
	parent := Spec{
		Name:      "search",
		RateLimit: quotas.Spec{Type: quotas.TypeTokenBucket, MaxTokens: 10},
		SubClients: []Spec{
			{Name: "images"},
			{Name: "video", RateLimit: quotas.Spec{Type: quotas.TypeConcurrencyGate, MaxConcurrency: 2}},
		},
	}

	out := Flatten([]Spec{parent})
	require.Len(t, out, 3)
	assert.Equal(t, quotas.TypeTokenBucket, out[1].RateLimit.Type, "child with no rateLimit inherits parent's")
	assert.Equal(t, quotas.TypeConcurrencyGate, out[2].RateLimit.Type, "child's own rateLimit overrides parent's")
}

func TestFlatten_MultiLevelSubClientsFlattenRecursively(t *testing.T) {
	parent := Spec{
		Name: "a",
		SubClients: []Spec{
			{Name: "b", SubClients: []Spec{
				{Name: "c"},
			}},
		},
	}

	out := Flatten([]Spec{parent})
	require.Len(t, out, 3)
	names := []string{out[0].Name, out[1].Name, out[2].Name}
	assert.Equal(t, []string{"a", "a:b", "a:b:c"}, names)
}

func TestFlatten_MetadataShallowMergesChildWins(t *testing.T) {
	parent := Spec{
		Name:     "a",
		Metadata: map[string]any{"region": "us", "team": "infra"},
		SubClients: []Spec{
			{Name: "b", Metadata: map[string]any{"region": "eu"}},
		},
	}

	out := Flatten([]Spec{parent})
	require.Len(t, out, 2)
	assert.Equal(t, "eu", out[1].Metadata["region"])
	assert.Equal(t, "infra", out[1].Metadata["team"])
}

func TestFlatten_NoSubClientsPassesThroughUnchanged(t *testing.T) {
	s := Spec{Name: "solo"}
	out := Flatten([]Spec{s})
	require.Len(t, out, 1)
	assert.Equal(t, "solo", out[0].Name)
}

func TestApplyDefaults_FillsUnsetFieldsFromInstanceDefaults(t *testing.T) {
	defaults := Spec{
		RateLimit: quotas.Spec{Type: quotas.TypeNoLimit},
		Metadata:  map[string]any{"env": "prod"},
	}
	spec := Spec{Name: "weather"}

	merged := ApplyDefaults(defaults, spec)
	assert.Equal(t, "weather", merged.Name)
	assert.Equal(t, quotas.TypeNoLimit, merged.RateLimit.Type)
	assert.Equal(t, "prod", merged.Metadata["env"])
}
