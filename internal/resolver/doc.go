// Package resolver archives posts together with everything they depend on.
//
// A post is only considered archived once its author is stored, its
// conversation has an existence record, and every post it references is
// stored with an edge pointing at it. The Resolver fetches whatever is
// missing from the origin, depth-first, inside a resolution Pass.
//
// # Resolution Passes
//
// A Pass is one execution triggered by the arrival of a new post. It carries
// an explicit guard set of post IDs it has already touched:
//
//   - in progress: currently being archived further up the stack
//   - archived: finished in this pass
//   - absent: the origin reported it missing; never fetched again this pass
//
// together with a step quota bounding the number of origin fetches. The
// guard set, not the call stack, is what terminates resolution when the
// origin describes reference cycles.
//
// # Integrity Gaps
//
// When a dependency cannot be fetched because the origin no longer has it
// (or the pass ran out of steps), the dependency is dropped: the edge is not
// written, or the post is stored without its author. The gap is logged at
// WARN, counted, and recorded on the Pass. It is never returned as an error.
//
// Transient and malformed origin failures are not gaps. They abort the pass
// and are returned to the caller. Whatever was committed before the failure
// stays committed and is completed the next time the post is resolved.
//
// # Ordering
//
// Within a pass, for each post:
//
//  1. the author is ensured (user cache, store, origin)
//  2. the conversation existence record is written
//  3. the post row is written
//  4. each reference target is resolved, then its edge is written
//
// Writing the post row before its references means a cycle back to a post
// that is still in progress finds that post already stored, so the edge can
// be written without re-entering it.
package resolver
