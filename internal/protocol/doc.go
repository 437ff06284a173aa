// Package protocol implements the fault and consistency protocol: the
// reactions of the core to door telemetry.
//
// Two telemetry subtopics are consumed:
//
//	<base>/<customer>/<device>@<seq>/passingByDetection  {"type":"entry","value":1.0,"timestamp":"..."}
//	<base>/<customer>/<device>@<seq>/powerStatus         {"data":false}
//
// A passing-by detection moves the pet from one room to the other and keeps
// exactly one room occupied. A door going offline puts the smart home into
// the degraded state: doors sharing a room with the failed door are rerouted
// to the default room through their override associations. When the last
// door comes back online the normal associations are restored.
//
// Every reaction runs under a per smart home lock on a twin acquired for it
// alone, and publishes the resulting denial and power saving settings as
// retained messages:
//
//	<base>/<customer>/NodeMCU@<seq>/denialEntrySetting  {"setting":true,"timestamp":"..."}
//
// Errors that signal corrupted data (several occupied rooms, a missing or
// duplicated default room, a door pointing outside its smart home) abort
// the reaction, are logged at error level and counted in
// pettracker_consistency_errors_total.
package protocol
