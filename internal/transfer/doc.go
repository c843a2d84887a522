// Package transfer serializes drive writes. Entries wait in a local queue
// and are handed to the pipeline's processor stage one at a time, so pending
// transfers can be cancelled until they reach a worker.
package transfer
