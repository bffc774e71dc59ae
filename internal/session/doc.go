// Package session holds the in-memory state of a scanning session: the
// ordered image queue, the regions drawn on each image, and the output cards
// produced by recognition.
//
// # Identity
//
// Images and regions are addressed by their ids, never by position. The
// queue is deduplicated by source path. Reordering only changes positions, so
// regions and cards keep following the same image.
//
// # Lifecycle
//
// Removing an image removes its regions in the same critical section.
// Cards are not removed with the image: they are finished work and stay
// until ClearResults.
//
// # Notification
//
// Session replaces the process-wide reactive stores of a UI with an owned
// value. Components subscribe with Subscribe and receive an Event carrying
// the recomputed View after each completed mutation.
//
// # Concurrency
//
// Recognition responses arrive from goroutines in completion order.
// MergeRegionResult is keyed by region id inside the image's card, so results
// for different regions converge to the same card whatever their arrival
// order. Two in-flight requests for the same region race: the last response
// to arrive wins.
package session
