// Package model defines the value types shared by the cart-stock engine.
//
// Every record that crosses a component boundary lives here: products read
// from the catalog, the stock mapping owned by the ledger, cart line items,
// client identities and money amounts.
//
// # Validated Construction
//
// Records are built through constructors (NewProduct, NewLineItem,
// NewClientID, ParseMoney, ParseQuantity) that reject negative prices,
// non-positive quantities and empty identifiers at the boundary. Code that
// holds a value of these types can assume it is well formed.
//
// # Money
//
// Amounts are integer minor units (cents). Floats never reach persisted
// state: catalog decimals are rounded to cents once, at load time.
//
// # Canonical JSON
//
// Persisted values are serialized with MarshalCanonical: keys sorted by
// UTF-16 code units, no HTML escaping, NFC-normalized strings, no floats and
// no null. Identical state always produces identical bytes, which keeps store
// contents comparable across processes and golden files stable.
package model
