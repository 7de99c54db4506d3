// Package paywall provides the entitlement core for paid features: bcrypt
// credential verification, JWT issuance with an entitlement snapshot, HTTP
// guards, and an idempotent webhook reconciler that is the single writer of
// the paid flag.
//
// Payment lifecycle:
//   - Checkout opens a provider preference that carries the user id as
//     correlation metadata. Nothing is persisted locally at this point.
//   - The provider notifies us out-of-band. ReconcilePaymentHandler fetches
//     the authoritative payment by id (notification bodies are advisory
//     only), appends a PaymentRecord keyed by the provider payment id, and
//     flips the user's paid flag when the payment is approved. Duplicate
//     deliveries resolve against the unique payment_id constraint and are
//     treated as success.
//   - Issued tokens embed the paid flag at issuance time and are not
//     re-checked against the database; a user who pays mid-session gets the
//     entitlement on their next login.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     reconciler to describe login, checkout, and entitlement events. Sinks
//     run best-effort (errors are logged) so you can forward to a database
//     or queue without blocking the request.
package paywall
