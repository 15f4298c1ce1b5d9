// Package harness runs cart scenarios against an isolated shop.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: two_clients_compete
//	description: "Second client cannot take stock the first one reserved"
//	catalog:
//	  - { id: "1", name: "Pommes", price: "2.50", stock: 3 }
//	flow:
//	  - client: alice
//	    invoke: add_item
//	    args: { product: "1", qty: 2 }
//	  - client: bob
//	    invoke: add_item
//	    args: { product: "1", qty: 2 }
//	    expect: { case: INSUFFICIENT_STOCK }
//	assertions:
//	  - { type: stock, product: "1", equals: 1 }
//	  - { type: cart_quantity, client: alice, product: "1", equals: 2 }
//	  - { type: conservation }
//
// When catalog is omitted the built-in grocery catalog is used.
//
// # Assertion Types
//
//   - stock: available quantity of a product after the flow
//   - cart_quantity: quantity of a product in a client's cart
//   - cart_lines: number of lines in a client's cart
//   - conservation: available + reserved equals baseline for every product
//   - trace_count: an action appears exactly N times
//   - trace_order: actions appear in the given order
//
// # Deterministic Testing
//
// Every run uses a fresh memory store, a clock fixed at testutil.Epoch and
// counting invoice references, so traces are identical across runs and can
// be compared with golden files.
package harness
