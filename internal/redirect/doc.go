// Package redirect resolves where a restarting session navigates to.
//
// Resolution walks an ordered list of steps. Each step either produces a
// target or reports no match; a step error is logged and treated as no match.
// The chain always ends with a default step, so Resolve never fails:
//
//  1. registry: the first path segment, percent-decoded, is looked up by exact
//     name in the remote site registry.
//  2. path-override: "/s/<target>" navigates to <target>, adding https:// when
//     no scheme is present.
//  3. default: a fixed URL.
package redirect
