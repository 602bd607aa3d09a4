// Package substrate defines the scheduling backends that pipeline workers run
// on. A Runtime spawns workers, joins them, suspends them for a duration and
// hands out exclusive-access lockers. Two backends are provided: Threads pins
// every worker to its own OS thread and blocks it on ordinary mutexes, while
// Tasks runs workers as plain goroutines that suspend on semaphores.
//
// Worker logic is written once against Runtime and behaves identically on
// either backend at the protocol level.
package substrate
