// Package integration contains the vendor integration bounded context.
// It defines the port through which raw point-of-sale exports enter the system.
//
// Key concepts:
//   - VendorFeedClient: Port interface for fetching the three export feeds
//   - FeedType: Invoices, SystemCloseOuts and PosCloseOuts
//   - Document: Order-preserving, weakly typed JSON object used for raw vendor records
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
