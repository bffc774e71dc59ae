// Package workbench drives the scan session: it ingests images through the
// processing gateway, runs region recognition and merges the results into
// the session's output cards.
package workbench
