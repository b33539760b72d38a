// Package fileset owns the ordered collection of selected video entries.
// Entry order is the primary ordering contract of the whole system: it
// directly determines merge order.
package fileset
