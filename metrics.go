package oram

import "github.com/prometheus/client_golang/prometheus"

// Collectors are not registered by the library. Embedding applications
// register the ones they want:
//
//	prometheus.MustRegister(oram.BucketReads, oram.BucketWrites, oram.StashGrowths)
//
// Bucket access totals are determined by the public parameters alone.
// StashGrowths records stash overflow events, the one deliberate,
// documented leak of the protocol.

var BucketReads = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "oram_bucket_reads",
	Help: "The number of bucket reads issued to physical memory.",
})

var BucketWrites = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "oram_bucket_writes",
	Help: "The number of bucket writes issued to physical memory.",
})

var StashGrowths = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "oram_stash_growths",
	Help: "The number of times the stash grew after overflowing during eviction.",
})
