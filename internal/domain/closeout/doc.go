// Package closeout contains the sales closeout ledger bounded context.
//
// A SalesCloseout is keyed by workplace (partition) and a composite
// businessDay#posId#sequenceNumber sort key. Payment breakdowns are expressed
// as PaymentLine values normalised to five canonical methods (Cash, Card,
// Pending Collection, Prepaid Transfer, AgoraPay) followed by any extra
// methods the vendor reports.
package closeout
