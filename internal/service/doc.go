// Package service holds the analytics and control modules run over a twin
// snapshot: RetrievePetPosition, FindFaults, FaultRecovery and RoomAnalytics.
//
// Every module is a pure function of its snapshot. FaultRecovery takes the
// result of FindFaults as an argument rather than calling it implicitly, so
// callers can see and reuse the fault list. The Engine registry exposes the
// modules by name for twins and the API.
package service
