package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
catalog:
  - { id: "7", name: "Figues", price: "4.20", stock: 3, tag: top }
flow:
  - client: alice
    invoke: add_item
    args: { product: "7", qty: 2 }
    expect: { case: Success }
assertions:
  - { type: stock, product: "7", equals: 1 }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	require.Len(t, scenario.Catalog, 1)
	assert.Equal(t, "4.20", scenario.Catalog[0].Price)
	assert.Equal(t, "top", scenario.Catalog[0].Tag)
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, "alice", scenario.Flow[0].Client)
	assert.Equal(t, InvokeAddItem, scenario.Flow[0].Invoke)
	assert.Equal(t, StepArgs{Product: "7", Qty: 2}, scenario.Flow[0].Args)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, 1, *scenario.Assertions[0].Equals)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown field",
			content: `
name: x
description: d
flow:
  - invoke: reset_stock
assertion:
  - { type: conservation }
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing name",
			content: `
description: d
flow:
  - invoke: reset_stock
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
flow:
  - invoke: reset_stock
`,
			wantErr: "description is required",
		},
		{
			name: "empty flow",
			content: `
name: x
description: d
flow: []
`,
			wantErr: "flow list is required",
		},
		{
			name: "unknown operation",
			content: `
name: x
description: d
flow:
  - invoke: checkout
`,
			wantErr: `flow[0]: unknown operation "checkout"`,
		},
		{
			name: "add_item without product",
			content: `
name: x
description: d
flow:
  - client: alice
    invoke: add_item
    args: { qty: 1 }
`,
			wantErr: "add_item requires args.product",
		},
		{
			name: "build_invoice without method",
			content: `
name: x
description: d
flow:
  - client: alice
    invoke: build_invoice
`,
			wantErr: "build_invoice requires args.method",
		},
		{
			name: "set_online_payment without enabled",
			content: `
name: x
description: d
flow:
  - invoke: set_online_payment
`,
			wantErr: "set_online_payment requires args.enabled",
		},
		{
			name: "empty expect case",
			content: `
name: x
description: d
flow:
  - invoke: reset_stock
    expect: {}
`,
			wantErr: "expect.case is required",
		},
		{
			name: "catalog product without price",
			content: `
name: x
description: d
catalog:
  - { id: "1", name: "Pommes", stock: 1 }
flow:
  - invoke: reset_stock
`,
			wantErr: "catalog[0]: price is required",
		},
		{
			name: "stock assertion without equals",
			content: `
name: x
description: d
flow:
  - invoke: reset_stock
assertions:
  - { type: stock, product: "1" }
`,
			wantErr: "stock assertion requires 'equals' field",
		},
		{
			name: "cart_quantity without client",
			content: `
name: x
description: d
flow:
  - invoke: reset_stock
assertions:
  - { type: cart_quantity, product: "1", equals: 0 }
`,
			wantErr: "requires 'client' and 'product' fields",
		},
		{
			name: "trace_order with one action",
			content: `
name: x
description: d
flow:
  - invoke: reset_stock
assertions:
  - { type: trace_order, actions: [reset_stock] }
`,
			wantErr: "at least 2 actions",
		},
		{
			name: "unknown assertion type",
			content: `
name: x
description: d
flow:
  - invoke: reset_stock
assertions:
  - { type: final_state }
`,
			wantErr: `unknown assertion type "final_state"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
