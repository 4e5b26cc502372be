// Package stock resolves b-roll keywords to downloadable stock footage.
//
// Resolution never fails a job: an empty keyword, an empty result set, and
// any service error all collapse into a Match with Found=false so the caller
// keeps the original footage. Only context cancellation is returned.
package stock
