// Package ciutil detects CI environments so timing-sensitive tests can widen
// their tolerances on shared runners.
package ciutil
