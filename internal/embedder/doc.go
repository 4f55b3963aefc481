// Package embedder turns event text and user questions into fixed-length
// vectors.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "onnx",
//	    ONNXModelPath: "models/bge-base-en-v1.5/model.onnx",
//	    CacheSize: 10000,
//	    CacheDir:  "data/embcache",
//	    Timeout:   10 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	// Load the model now instead of on the first query
//	if err := emb.Warmup(ctx); err != nil {
//	    return err // errors.Is(err, embedder.ErrModelLoad)
//	}
//
//	vec, err := embedder.Embed(ctx, emb, "robotics workshop")
//
// # Providers
//
// onnx runs BAAI/bge-base-en-v1.5 locally through ONNX Runtime (768
// dimensions, [CLS] pooling, unit length). openai talks to any
// OpenAI-compatible embeddings endpoint through langchaingo. hashing is a
// deterministic feature-hashing embedder that needs no model; it is the
// default for development and tests.
//
// # Loading
//
// Every provider built by New sits behind a Lazy guard: the first caller
// loads the model under a mutex and concurrent callers wait for that one load.
// A failed load is cached and returned to every later caller as ErrModelLoad,
// so callers can skip vector search instead of ranking with a zero vector.
//
// # Caching
//
// Service checks an in-memory LRU first and then the optional badger cache
// keyed by model and text hash. Cached vectors are copied on the way out.
//
// # Errors
//
// A call that exceeds the configured timeout returns an error wrapping
// types.ErrRetryable. Remote providers retry transient failures with
// exponential backoff before reporting ErrProviderFailed.
package embedder
