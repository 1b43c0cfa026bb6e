// Package action defines the values that flow through a store's dispatch
// pipeline.
//
// Two kinds of value can be dispatched:
//
//   - Action: an immutable, tagged value with a Type discriminator and an
//     optional Payload. Reducers match on Type.
//   - Thunk: a deferred operation that receives the dispatcher and may issue
//     any number of further dispatches, synchronously or after blocking on
//     external work. Thunks never reach a reducer directly.
//
// Both satisfy Dispatchable, which is sealed to this package.
//
// # Async lifecycle
//
// AsyncTypes names the three lifecycle actions of one asynchronous
// operation:
//
//	fetch := action.Async("assets/fetch")
//	fetch.Pending()   // "assets/fetch/pending"
//	fetch.Fulfilled() // "assets/fetch/fulfilled"
//	fetch.Rejected()  // "assets/fetch/rejected"
package action
