// Package memory is the relevance-retrieval core behind an agent's memory.
//
// A Store owns every Concept an agent remembers, indexes them per kind
// (chronologically and by keyword) and ranks them against one or more query
// embeddings ("focal points"). Ranking is a weighted combination of the
// per-dimension components a Scorer produces; a candidate's final score is the
// maximum over all focal points.
//
// Two concrete memories specialize the Store:
//   - ShortTermMemory: steep recency decay, attention-span cutoff, perception
//     ingestion with exact-triple deduplication.
//   - LongTermMemory: slow decay with a relevance floor, learned traits.
//
// Embeddings and impact scores come from injected providers and time comes from
// an injected Clock, so the package never touches the network or the wall clock.
package memory
