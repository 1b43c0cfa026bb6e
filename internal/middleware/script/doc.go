// Package script runs a Lua hook over every action passing through a
// store's pipeline.
//
// A script defines a global on_action function that receives the action as
// a table with type, payload, meta, error and target fields. Its return
// value decides what happens next:
//
//	nil or true    the action continues unchanged
//	false          the action is swallowed
//	string         the action continues with that type
//	table          the action continues with the table's type, payload and meta
//
// Payload and meta values the script leaves alone keep their Go values.
// Assign a new table to replace a payload; edits made in place to a table
// payload are not read back.
//
// The sandbox opens the base, table, string and math libraries only, and
// exposes a statekit module with log(msg) and state(name).
package script
