// Package endorsement contains the Endorsement bounded context.
// This context reconciles fiscal documents pulled from the source ERP
// against the partner cargo-insurance endorsement service.
//
// Key concepts:
//   - DocumentRecord: ledger entry tracking one fiscal document through
//     the endorsement status lifecycle
//   - DocumentLedger: port for the persisted ledger of every document seen
//   - SourceClient: port for the ERP document search and payload endpoints
//   - EndorserClient: port for the partner endorsement service
//   - Evaluate: pure decision function applying per-tenant rules
//   - CycleSummary: aggregated result of one reconciliation cycle
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package endorsement
