// Package domain holds the data model of the governance controller: policy
// documents and their identities, enforcement modes and outcomes, violations
// with their remediation variants, and the capability interfaces the core
// consumes.
//
// Types here are plain data. Behaviour lives in the packages that operate on
// them (store, enforce, watch, cluster).
package domain
