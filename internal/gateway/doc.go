// Package gateway implements the write operations of the marketplace
// persistence core.
//
// Each operation is one atomic unit on the store:
//
//  1. Validate field presence (before any database access)
//  2. Open one immediate transaction via store.Execute
//  3. Resolve idempotency for uniquely-constrained writes
//  4. Apply the domain mutation
//  5. Insert the caller's event verbatim
//  6. Commit, then notify subscribers
//
// Business rules (who may do what, state-machine legality) belong to the
// calling services. The gateway checks structure only: required fields,
// primitive types, the patch allow-list, and share arithmetic against the
// stored escrow amount.
//
// # Idempotency
//
// Operations keyed on a unique constraint (agent public key, credit
// reference, locked escrow per payer and task, bid per task and bidder,
// feedback triple) look the key up inside the transaction, after the write
// lock is held. A stored row equal to the request is a replay: the stored
// identity is returned with Replayed set and no event is written. A stored
// row that differs is a conflict.
package gateway
