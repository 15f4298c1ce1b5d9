// Package store provides the persistent key-value stores behind the
// cart-stock engine.
//
// Every backend implements KV: string keys, string values, and a unit of
// work (Update) in which reads and writes are applied together or not at all.
// The engine never writes outside Update, so a failed operation leaves the
// store exactly as it found it.
//
// # Keys
//
//   - stock: canonical JSON mapping productId → available quantity
//   - cart_<clientId>: canonical JSON list of line items
//   - clientCode_current: last bound client identity
//   - onlinePayment: "true" | "false", written by the admin collaborator
//
// # Isolation
//
// Units of work are always atomic within one process. Across processes
// (several CLI invocations sharing one store, the analogue of several open
// browser tabs) the guarantee depends on the backend:
//
//   - Store (SQLite): serializable. Transactions take the write lock up front
//     (_txlock=immediate) and wait up to busy_timeout for other writers.
//   - Redis: optimistic. Keys read inside a unit of work are WATCHed and the
//     writes committed with MULTI/EXEC; a conflict re-runs the unit of work,
//     up to MaxAttempts times, then fails with CONCURRENT_UPDATE.
//   - File: best effort only. Each commit re-reads the file and rewrites it;
//     two processes that read the same value before either commits lose one
//     of the updates. This mirrors browser local storage and is the mode in
//     which the engine can oversell stock.
//   - Memory: a single process only; used by tests and the scenario harness.
//
// Because Redis may run a unit of work more than once, the function passed
// to Update must derive everything it writes from what it reads inside that
// call.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - BEGIN IMMEDIATE: Take the write lock when a unit of work starts
package store
