// Package memory implements a semantically searchable store for agent
// memories: free-form records retrieved by meaning rather than by key.
//
// Every record is embedded twice from the same text rendering, once on a
// fast primary channel and once on a higher-quality secondary channel, and
// search blends the two similarities into one ranked score with an adaptive
// threshold.
// Records can be linked through a typed, in-memory relationship graph.
//
// Architecture:
//   - Store: record lifecycle (validation, text rendering, dual embedding,
//     metadata codec) over two Index channels
//   - Index: one vector index per embedding channel (chromem-go backed)
//   - Embedder / DualEmbedder: text-to-vector collaborators (ONNX, Ollama,
//     mock; composed per channel by Pair)
//   - Graph: directed typed edges between records, queried symmetrically
//
// Construction is explicit: the process entry point builds embedders,
// channel indexes, the graph, and the Store, and passes them down. There is
// no package-level state.
package memory
