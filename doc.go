/*
Package kvtree implements hierarchical storage of nested values on top of a
flat key-value backend (Bolt, Badger, memory, or any three functions doing
get, set and delete).

Callers address values by dotted paths ("a.b.c") and store primitives, objects
and arrays. Reading a container returns a lazy View instead of a copy.

# Technical Details

**Paths.**
A canonical path starts with exactly one separator: the root is ".", and
"a.b" is stored under ".a.b". Escaped separators are not supported.

**Records.**
Every path maps to one backend key. Its value is either a leaf (string,
number, boolean or null) or a container descriptor:

	{type: "object", keys: [...]}
	{type: "array", length: n}

The root descriptor additionally carries root: true and is created when a
Store is first opened on a backend, along with a metadata record stored under
a key outside the path namespace.

**Manifest consistency.**
For every container, the records one segment below it are exactly the ones
its descriptor declares: the names in keys, or indices 0..length-1. Set and
Delete keep this true after every call:

 1. Set tears down the old subtree first, writes the new descriptor or leaf,
    writes children one by one (each registering itself in the new
    descriptor), and updates the parent descriptor last.

 2. Delete tears down the whole subtree recursively, moves later array
    elements down by one when deleting from the middle of an array, and
    updates the parent descriptor last.

There is no atomicity across backend calls; a backend failure halfway through
can leave a partially written subtree, which Check reports.

**Encoding.**
Records are msgpack by default; JSON is available for backends that need
text values.

**Views.**
A View is bound to a path and container type and reads through to the
backend on every access. The Store remembers every View it hands out;
RemoveView turns one inert (reads return nil, writes report false).
*/
package kvtree
