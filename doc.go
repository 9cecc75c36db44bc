// Package registration implements two phase account registration: an
// account is created inactive with a single use activation key, the key
// is mailed to the owner, and visiting it activates the account.
//
// Activation lifecycle:
//   - An Account is Pending while it holds a live 40 character key, Active
//     once activated and Inactive when it holds neither. The state is derived
//     from the stored columns, see Account.State.
//   - ActivationStateMachine consumes keys. The transition is a single
//     conditional update, so at most one caller activates a given key and the
//     key is replaced by ActivatedSentinel in the same statement.
//   - Keys expire ActivationDays after the account was created. Expired
//     accounts stay pending until an operator deals with them.
//
// Services:
//   - RegisterAccountHandler, ActivateAccountHandler and CreateAccountHandler
//     follow the command handler shape (Execute with OnResponse) and expose
//     typed methods for callers that want the result directly.
//   - AdminActions bulk activates, resends activation emails and lists
//     pending accounts.
//
// Events:
//   - UserRegistered and UserActivated are emitted through an injected
//     EventBus. Delivery is best-effort, subscriber errors are logged.
package registration
