// Package knowledge provides read access to the embedded knowledge base.
//
// The Store handles embedding generation and vector similarity search against
// PostgreSQL + pgvector. The Retriever applies the role-based visibility
// filter and the score threshold on top of raw search results; it is the only
// retrieval entry point the orchestrator uses.
//
// Chunks and their visibility tags are owned by ingestion; this package only
// reads them.
package knowledge
