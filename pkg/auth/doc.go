// Package auth guards the gateway routes.
//
// Authenticators form a chain with three-outcome voting: Yes (identity
// found), No (credentials present but invalid) or Abstain (not my kind of
// credential). A default decision applies when every authenticator
// abstains. The middleware attaches the identity to the request context,
// scopes the usage ledger to its subject and enforces per-tier rate
// limits.
//
// Gateway credentials are unrelated to the per-provider credentials a
// request carries in selected_server_credentials.
package auth
