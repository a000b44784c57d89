// Package accounts manages the lifecycle of user accounts for an identity
// service: registration, email-based activation, password changes, and
// password-reset key issuance, with locale-aware mail notification.
//
// Lifecycle:
//   - Accounts are created pending activation: an activation key is issued at
//     registration and redeemed exactly once to flip the account to active.
//     Redemption clears the key atomically so a second redemption fails.
//   - Password resets stamp a reset key plus issuance date on the account.
//     Validity is checked at redemption time against the configured window;
//     expired keys are left inert rather than swept.
//   - Login and email are unique. Duplicate detection happens both at the
//     pre-check and at write time so concurrent registrations surface a
//     typed duplicate error instead of corrupting state.
//
// Notification:
//   - Mailer renders a per-event, per-locale template and dispatches through
//     a Transport. Delivery is best effort relative to the state transition
//     that triggered it: persistence commits first, mail failures are logged
//     and recorded through the ActivitySink, never returned to the caller.
//
// Authorization:
//   - The authorities set on an account is mutable only through an explicit
//     administrative path. UpdateProfileHandler strips any authorities
//     carried by its input, on the self-service and the admin surface alike.
package accounts
